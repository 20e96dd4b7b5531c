package editor

import (
	"fmt"
	"strings"

	"github.com/okian/scoutnotes/internal/adapters/mq/queue"
	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/draftkey"
	"github.com/okian/scoutnotes/internal/domain/export"
	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/internal/domain/scoring"
	"github.com/okian/scoutnotes/pkg/logger"
	"github.com/okian/scoutnotes/pkg/metrics"
)

// SetNumeric sets a slider trait. The evidence note is kept.
func (e *Editor) SetNumeric(traitKey string, v float64) error {
	return e.editTrait(traitKey, func(t rubric.Trait, cur draft.TraitValue) (draft.TraitValue, error) {
		if t.Type != rubric.TraitSlider {
			return cur, fmt.Errorf("%w: %s is a %s", ErrTraitType, t.Key, t.Type)
		}
		if !t.InRange(v) {
			return cur, fmt.Errorf("%w: %s accepts %v..%v, got %v", ErrOutOfRange, t.Key, t.Min, t.Max, v)
		}
		return draft.Numeric(v).WithNote(cur.Note), nil
	})
}

// SetOption sets a select trait. The evidence note is kept.
func (e *Editor) SetOption(traitKey, option string) error {
	return e.editTrait(traitKey, func(t rubric.Trait, cur draft.TraitValue) (draft.TraitValue, error) {
		if t.Type != rubric.TraitSelect {
			return cur, fmt.Errorf("%w: %s is a %s", ErrTraitType, t.Key, t.Type)
		}
		if _, ok := t.Option(option); !ok {
			return cur, fmt.Errorf("%w: %s has no option %q", ErrUnknownOption, t.Key, option)
		}
		return draft.Choice(option).WithNote(cur.Note), nil
	})
}

// SetEvidence sets the evidence note of a trait, keeping its value.
func (e *Editor) SetEvidence(traitKey, note string) error {
	return e.editTrait(traitKey, func(_ rubric.Trait, cur draft.TraitValue) (draft.TraitValue, error) {
		return cur.WithNote(note), nil
	})
}

// ClearTrait removes the value and evidence note of a trait.
func (e *Editor) ClearTrait(traitKey string) error {
	return e.editTrait(traitKey, func(rubric.Trait, draft.TraitValue) (draft.TraitValue, error) {
		return draft.TraitValue{}, nil
	})
}

func (e *Editor) editTrait(traitKey string, apply func(rubric.Trait, draft.TraitValue) (draft.TraitValue, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editableLocked(); err != nil {
		return err
	}
	if e.sess.Form == nil {
		return ErrScoringDisabled
	}
	t, ok := e.sess.Form.Trait(traitKey)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrait, traitKey)
	}
	next, err := apply(t, e.sess.Payload.Value(traitKey))
	if err != nil {
		return err
	}
	e.sess.Payload.SetValue(traitKey, next)
	e.touchLocked()
	return nil
}

// SetStrengths replaces the strengths text.
func (e *Editor) SetStrengths(text string) error {
	return e.editText(func(p *draft.Payload) { p.StrengthsText = text })
}

// SetImprovements replaces the areas-for-improvement text.
func (e *Editor) SetImprovements(text string) error {
	return e.editText(func(p *draft.Payload) { p.ImprovementsText = text })
}

// SetFreeNotes replaces the free-form notes.
func (e *Editor) SetFreeNotes(text string) error {
	return e.editText(func(p *draft.Payload) { p.FreeNotesText = text })
}

func (e *Editor) editText(apply func(*draft.Payload)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editableLocked(); err != nil {
		return err
	}
	apply(&e.sess.Payload)
	e.touchLocked()
	return nil
}

func (e *Editor) editableLocked() error {
	if e.closed {
		return ErrClosed
	}
	if !e.open {
		return ErrNoSession
	}
	return nil
}

func (e *Editor) touchLocked() {
	e.sess.Payload.Touch(e.now())
	if e.sess.Form != nil {
		e.sess.Payload.FormID = e.sess.Form.FormID
	}
	e.markDirtyLocked()
}

// SaveAs copies the open draft into a new named draft titled title, opens it
// and pushes it right away. The draft it was copied from is left as is.
func (e *Editor) SaveAs(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editableLocked(); err != nil {
		return "", err
	}
	e.switchAwayLocked()

	key := draftkey.MintNamedKey()
	p := e.sess.Payload.Clone()
	p.Title = title
	p.Touch(e.now())

	e.epoch++
	e.sess.Identity = draftkey.Named(key)
	e.sess.Payload = p
	e.fetchCtx, e.fetchCancel = nil, nil

	e.writeLocalLocked()
	e.pushLocked()
	e.log.Info(e.runCtx, "draft saved as named copy",
		logger.String("key", key), logger.String("title", title))
	return key, nil
}

// Delete removes the open draft from both replicas and leaves a fresh empty
// draft in its place for the same context.
func (e *Editor) Delete() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editableLocked(); err != nil {
		return err
	}

	key := e.sess.Identity.Key
	e.stopTimersLocked()
	if e.fetchCancel != nil {
		e.fetchCancel()
	}
	e.fetchCtx, e.fetchCancel = nil, nil
	e.localDirty, e.remoteDirty = false, false
	// in-flight results for the old content are stale from here on
	e.epoch++

	e.cache.Remove(key)
	e.dedupe.Forget(e.runCtx, key)
	if !e.queue.Enqueue(e.runCtx, queue.Job{Kind: queue.KindRemove, Key: key, Epoch: e.epoch}) {
		e.pendingRemoves[key] = struct{}{}
		e.armRemoteLocked()
	}

	fresh := draft.New(e.sess.Sport, e.sess.FilmSubmissionReference)
	if e.sess.Form != nil {
		fresh.FormID = e.sess.Form.FormID
	}
	e.sess.Payload = fresh
	e.log.Info(e.runCtx, "draft deleted", logger.String("key", key))
	return nil
}

// Completeness reports which required traits are still empty.
func (e *Editor) Completeness() (scoring.Completeness, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return scoring.Completeness{}, ErrNoSession
	}
	if e.sess.Form == nil {
		return scoring.Completeness{}, ErrScoringDisabled
	}
	metrics.RecordCompleteness()
	return scoring.ComputeCompleteness(*e.sess.Form, e.sess.Payload.RubricState), nil
}

// Report renders the open draft as a plain-text report.
func (e *Editor) Report() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return "", ErrNoSession
	}
	if e.sess.Form == nil {
		return "", ErrScoringDisabled
	}
	return export.ToReport(*e.sess.Form, e.sess.Payload), nil
}

// Scoring renders the rubric state of the open draft for the scoring service.
func (e *Editor) Scoring() (export.ScoringPayload, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return export.ScoringPayload{}, ErrNoSession
	}
	if e.sess.Form == nil {
		return export.ScoringPayload{}, ErrScoringDisabled
	}
	return export.ToScoringPayload(*e.sess.Form, e.sess.Payload.RubricState), nil
}
