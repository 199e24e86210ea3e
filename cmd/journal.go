package cmd

import (
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/circdesk/internal/journal"
	"github.com/spf13/cobra"
)

func newJournalCmd(opts *globalOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the desk's request journal",
		Long: `Every checkout, return and lookup the desk sends is journaled with its
outcome, including results that arrived after the operator cancelled.`,
	}
	cmd.PersistentFlags().StringVar(&path, "journal", "", "Path to the journal database")

	open := func() (*journal.Store, error) {
		cfg, err := opts.load()
		if err != nil {
			return nil, err
		}
		if path != "" {
			cfg.Journal = path
		}
		return journal.Open(cfg.Journal)
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Show the newest journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer closeJournal(store)

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				discarded := ""
				if e.Discarded {
					discarded = " (discarded)"
				}
				member := ""
				if e.MemberID != 0 {
					member = fmt.Sprintf(" member=%d", e.MemberID)
				}
				fmt.Fprintf(out, "%s %-8s %-9s %s%s %s%s\n",
					e.At.Local().Format("2006-01-02 15:04:05"), e.Mode, e.Outcome, e.Code, member, e.Detail, discarded)
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Number of entries to show (0 for all)")

	var outPath string
	export := &cobra.Command{
		Use:     "export",
		Short:   "Export the whole journal to a parquet file",
		Example: `  circdesk journal export --out circulation.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer closeJournal(store)

			entries, err := store.List(cmd.Context(), 0)
			if err != nil {
				return err
			}
			if err := journal.ExportParquet(entries, outPath); err != nil {
				return err
			}
			slog.Info("Journal exported", "path", outPath, "entries", len(entries))
			return nil
		},
	}
	export.Flags().StringVar(&outPath, "out", "", "Parquet file to write")
	_ = export.MarkFlagRequired("out")

	var asYAML bool
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarize journal outcomes per mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer closeJournal(store)

			entries, err := store.List(cmd.Context(), 0)
			if err != nil {
				return err
			}
			sum := journal.Summarize(entries)
			if asYAML {
				return sum.WriteYAML(cmd.OutOrStdout())
			}
			return sum.Write(cmd.OutOrStdout())
		},
	}
	stats.Flags().BoolVar(&asYAML, "yaml", false, "Print the summary as YAML")

	cmd.AddCommand(list, export, stats)
	return cmd
}

func closeJournal(store *journal.Store) {
	if err := store.Close(); err != nil {
		slog.Error("Unable to close journal", "err", err)
	}
}
