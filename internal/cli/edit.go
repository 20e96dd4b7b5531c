package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/internal/editor"
)

// editFlags are the edits applied by one edit run, in this order: values,
// evidence, clears, texts, save-as.
type editFlags struct {
	values       []string
	evidence     []string
	clears       []string
	strengths    *string
	improvements *string
	notes        *string
	saveAs       string
}

func newEditCmd(g *globals) *cobra.Command {
	var (
		t                              target
		e                              editFlags
		strengths, improvements, notes string
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Apply edits to a draft and sync it",
		Long: `Open a draft, apply the given edits and sync it.

Trait values are given as trait=value; sliders take a number and select
traits take one of their option values.`,
		Example: `  notesctl edit -s football -f film-42 --set speed=8 --set weak_foot=strong
  notesctl edit -s football -f film-42 --evidence speed="beat the full back twice"
  notesctl edit -s football -f film-42 --save-as "Cup semi, first half"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("strengths") {
				e.strengths = &strengths
			}
			if cmd.Flags().Changed("improvements") {
				e.improvements = &improvements
			}
			if cmd.Flags().Changed("notes") {
				e.notes = &notes
			}
			return g.runEdit(cmd.Context(), t, e)
		},
	}
	t.bind(cmd)
	cmd.Flags().StringArrayVar(&e.values, "set", nil, "Set a trait value, trait=value (repeatable)")
	cmd.Flags().StringArrayVar(&e.evidence, "evidence", nil, "Set a trait evidence note, trait=note (repeatable)")
	cmd.Flags().StringArrayVar(&e.clears, "clear", nil, "Clear a trait (repeatable)")
	cmd.Flags().StringVar(&strengths, "strengths", "", "Replace the strengths text")
	cmd.Flags().StringVar(&improvements, "improvements", "", "Replace the areas for improvement text")
	cmd.Flags().StringVar(&notes, "notes", "", "Replace the free notes")
	cmd.Flags().StringVar(&e.saveAs, "save-as", "", "Save the result as a new named draft with this title")
	return cmd
}

func (g *globals) runEdit(ctx context.Context, t target, e editFlags) error {
	ed, err := g.openEditor(ctx, t)
	if err != nil {
		return err
	}
	if err := applyEdits(ed, e); err != nil {
		_ = ed.Close(ctx)
		return err
	}

	sess, err := ed.Session()
	if err != nil {
		_ = ed.Close(ctx)
		return err
	}
	if e.saveAs != "" {
		key, err := ed.SaveAs(e.saveAs)
		if err != nil {
			_ = ed.Close(ctx)
			return err
		}
		sess.Identity.Key = key
	}
	c, cerr := ed.Completeness()

	if err := closeEditor(ctx, ed); err != nil {
		_, _ = fmt.Fprintf(g.out, "draft %s kept locally\n", sess.Identity.Key)
		return err
	}
	_, _ = fmt.Fprintf(g.out, "draft %s saved\n", sess.Identity.Key)
	switch {
	case cerr != nil:
		_, _ = fmt.Fprintln(g.out, "scoring disabled: no active rubric form")
	case c.Complete():
		_, _ = fmt.Fprintf(g.out, "complete: %d/%d required traits filled\n", c.Required, c.Required)
	default:
		_, _ = fmt.Fprintf(g.out, "missing required: %s\n", strings.Join(c.MissingRequired, ", "))
	}
	return nil
}

func applyEdits(ed *editor.Editor, e editFlags) error {
	sess, err := ed.Session()
	if err != nil {
		return err
	}
	for _, kv := range e.values {
		trait, value, err := splitAssignment(kv)
		if err != nil {
			return err
		}
		if err := setValue(ed, sess.Form, trait, value); err != nil {
			return err
		}
	}
	for _, kv := range e.evidence {
		trait, note, err := splitAssignment(kv)
		if err != nil {
			return err
		}
		if err := ed.SetEvidence(trait, note); err != nil {
			return err
		}
	}
	for _, trait := range e.clears {
		if err := ed.ClearTrait(trait); err != nil {
			return err
		}
	}
	if e.strengths != nil {
		if err := ed.SetStrengths(*e.strengths); err != nil {
			return err
		}
	}
	if e.improvements != nil {
		if err := ed.SetImprovements(*e.improvements); err != nil {
			return err
		}
	}
	if e.notes != nil {
		if err := ed.SetFreeNotes(*e.notes); err != nil {
			return err
		}
	}
	return nil
}

// setValue picks the numeric or option setter from the trait type.
func setValue(ed *editor.Editor, form *rubric.Form, trait, value string) error {
	if form == nil {
		return editor.ErrScoringDisabled
	}
	t, ok := form.Trait(trait)
	if !ok {
		return fmt.Errorf("%w: %s", editor.ErrUnknownTrait, trait)
	}
	if t.Type == rubric.TraitSelect {
		return ed.SetOption(trait, value)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: %s expects a number: %w", ErrUsage, trait, err)
	}
	return ed.SetNumeric(trait, v)
}

func splitAssignment(kv string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return "", "", fmt.Errorf("%w: expected trait=value, got %q", ErrUsage, kv)
	}
	return strings.TrimSpace(k), v, nil
}
