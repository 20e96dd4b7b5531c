package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/draftkey"
)

func newRubricCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rubric <sport>",
		Short: "Print the active rubric form for a sport",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			form, err := client.ActiveForm(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(g.out)
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return enc.Encode(form)
		},
	}
}

func newListCmd(g *globals) *cobra.Command {
	var f draft.ListFilter
	var mode string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your drafts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.Mode = draftkey.Mode(mode)
			client, err := g.client()
			if err != nil {
				return err
			}
			list, err := client.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printSummaries(g.out, list)
		},
	}
	cmd.Flags().StringVarP(&f.Sport, "sport", "s", "", "Only drafts for this sport")
	cmd.Flags().StringVarP(&f.FilmSubmissionReference, "film", "f", "", "Only drafts for this film submission")
	cmd.Flags().StringVar(&mode, "mode", "", "Only autosave or named drafts")
	return cmd
}

func printSummaries(w io.Writer, list []draft.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tMODE\tSPORT\tTITLE\tUPDATED")
	for _, s := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.Key, s.Mode, s.Sport, s.Title, s.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func newShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print a stored draft record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			rec, err := client.FetchByKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(g.out)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func newReportCmd(g *globals) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the plain text report of a draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ed, err := g.openEditor(cmd.Context(), t)
			if err != nil {
				return err
			}
			defer func() { _ = ed.Close(cmd.Context()) }()
			report, err := ed.Report()
			if err != nil {
				return err
			}
			_, err = io.WriteString(g.out, report)
			return err
		},
	}
	t.bind(cmd)
	return cmd
}

func newScoringCmd(g *globals) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "scoring",
		Short: "Print the scoring submission body of a draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ed, err := g.openEditor(cmd.Context(), t)
			if err != nil {
				return err
			}
			defer func() { _ = ed.Close(cmd.Context()) }()
			p, err := ed.Scoring()
			if err != nil {
				return err
			}
			raw, err := p.Encode()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(g.out, strings.TrimSpace(string(raw)))
			return err
		},
	}
	t.bind(cmd)
	return cmd
}

func newDeleteCmd(g *globals) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a draft locally and remotely",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ed, err := g.openEditor(cmd.Context(), t)
			if err != nil {
				return err
			}
			if err := ed.Delete(); err != nil {
				_ = ed.Close(cmd.Context())
				return err
			}
			if err := closeEditor(cmd.Context(), ed); err != nil {
				return err
			}
			_, err = fmt.Fprintln(g.out, "deleted")
			return err
		},
	}
	t.bind(cmd)
	return cmd
}
