package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/scoutnotes/internal/adapters/localcache"
	"github.com/okian/scoutnotes/internal/adapters/remote"
	"github.com/okian/scoutnotes/internal/domain/dedupe"
	"github.com/okian/scoutnotes/internal/editor"
	"github.com/okian/scoutnotes/pkg/logger"
)

// target selects the draft a command works on: the autosave draft of a
// sport and film submission, or a named draft by key.
type target struct {
	sport string
	film  string
	key   string
}

func (t *target) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.sport, "sport", "s", "", "Sport of the autosave draft")
	cmd.Flags().StringVarP(&t.film, "film", "f", "", "Film submission reference of the autosave draft")
	cmd.Flags().StringVarP(&t.key, "key", "k", "", "Key of a named draft")
}

func (t *target) validate() error {
	switch {
	case t.key != "" && (t.sport != "" || t.film != ""):
		return fmt.Errorf("%w: --key cannot be combined with --sport or --film", ErrUsage)
	case t.key == "" && strings.TrimSpace(t.sport) == "":
		return fmt.Errorf("%w: either --sport or --key is required", ErrUsage)
	}
	return nil
}

func (g *globals) client() (*remote.Client, error) {
	opts := []remote.Option{remote.WithTimeout(g.cfg.RequestTimeout())}
	if g.cfg.SessionToken != "" {
		opts = append(opts, remote.WithBearerToken(g.cfg.SessionToken))
	}
	if g.cfg.EvaluatorID != "" {
		opts = append(opts, remote.WithEvaluatorID(g.cfg.EvaluatorID))
	}
	return remote.New(g.cfg.RemoteBaseURL, opts...)
}

// openEditor builds an editor over the configured cache and service, opens
// t and waits for the remote copy to be reconciled.
func (g *globals) openEditor(ctx context.Context, t target) (*editor.Editor, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	client, err := g.client()
	if err != nil {
		return nil, err
	}

	ed := editor.New(localcache.Open(g.cfg.LocalCachePath), client, client,
		editor.WithLocalDelay(g.cfg.LocalDebounce()),
		editor.WithRemoteDelay(g.cfg.RemoteDebounce()),
		editor.WithQueueCapacity(g.cfg.SyncQueueSize),
		editor.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(g.cfg.DedupeSize))),
		editor.WithLogger(logger.Get().Named("editor")),
	)

	if t.key != "" {
		err = ed.OpenNamed(ctx, t.key)
	} else {
		err = ed.OpenAutosave(ctx, t.sport, t.film)
	}
	if err == nil {
		err = ed.WaitIdle(ctx)
	}
	if err != nil {
		_ = ed.Close(ctx)
		return nil, err
	}
	return ed, nil
}

// closeEditor flushes ed and reports a failed remote save as an error. The
// edits are kept in the local cache either way.
func closeEditor(ctx context.Context, ed *editor.Editor) error {
	if err := ed.Close(ctx); err != nil {
		return err
	}
	if st := ed.Status(); st.State == editor.StateError {
		return fmt.Errorf("%w: %w", ErrSyncError, st.Err)
	}
	return nil
}
