package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/canonical"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/extract"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/language"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/months"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/reconcile"
)

var (
	importFile  string
	importMode  string
	importActor string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a spot extract file",
	Long:  "Reads an XLSX or CSV extract, reconciles each broadcast month under the chosen mode (historical, weekly_update, manual), resolves entities, and assigns languages.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		mode := model.ImportMode(importMode)
		if !mode.Valid() {
			return eris.Errorf("invalid mode %q (historical, weekly_update, manual)", importMode)
		}

		sheet, _ := cmd.Flags().GetString("sheet")
		sheetIndex, _ := cmd.Flags().GetInt("sheet-index")
		skipRows, _ := cmd.Flags().GetInt("skip-rows")
		if sheet == "" {
			sheet = cfg.Import.SheetName
		}
		if !cmd.Flags().Changed("sheet-index") {
			sheetIndex = cfg.Import.SheetIndex
		}
		if !cmd.Flags().Changed("skip-rows") {
			skipRows = cfg.Import.SkipRows
		}

		records, err := extract.ReadFile(importFile, extract.Options{
			SheetName:  sheet,
			SheetIndex: sheetIndex,
			SkipRows:   skipRows,
		})
		if err != nil {
			return err
		}
		if tag, _ := cmd.Flags().GetString("source-tag"); tag != "" {
			for i := range records {
				records[i].SourceTag = tag
			}
		}
		zap.L().Info("extract parsed",
			zap.String("file", importFile),
			zap.Int("records", len(records)),
		)

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		resolver := canonical.NewResolver(st, st, st, cfg.Import.MaxSegments)
		engine := language.NewEngine(language.MustLoadCodes(), language.DefaultSets())
		tracker := months.NewTracker(st)
		r := reconcile.New(st, resolver, engine, tracker, cfg.Import.Concurrency)

		summary, err := r.Run(ctx, reconcile.Request{
			Mode:       mode,
			SourceFile: importFile,
			Actor:      importActor,
			Records:    records,
		})
		if summary != nil {
			formatSummary(os.Stdout, summary)
		}
		if err != nil {
			return eris.Wrap(err, "import")
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to XLSX or CSV extract (required)")
	importCmd.Flags().StringVar(&importMode, "mode", string(model.ImportModeWeekly), "import mode: historical, weekly_update, manual")
	importCmd.Flags().StringVar(&importActor, "actor", "", "operator name recorded on the batch")
	importCmd.Flags().String("source-tag", "", "provenance label stamped on every imported spot, overrides the file's source column")
	importCmd.Flags().String("sheet", "", "sheet name (XLSX only)")
	importCmd.Flags().Int("sheet-index", 0, "sheet index when no name is given (XLSX only)")
	importCmd.Flags().Int("skip-rows", 0, "rows above the header row (XLSX only)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

// formatSummary writes the per-run account of what happened to each month.
func formatSummary(out io.Writer, s *model.BatchSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Mode:\t%s\n", s.Mode)
	_, _ = fmt.Fprintf(w, "Records in:\t%d\n", s.RecordsIn)
	if s.RecordsRejected > 0 {
		_, _ = fmt.Fprintf(w, "Records rejected:\t%d\n", s.RecordsRejected)
	}
	_, _ = fmt.Fprintf(w, "Spots inserted:\t%d\n", s.SpotsInserted)
	_, _ = fmt.Fprintf(w, "Spots deleted:\t%d\n", s.SpotsDeleted)
	_, _ = fmt.Fprintf(w, "Review flagged:\t%d\n", s.ReviewFlagged)
	_, _ = fmt.Fprintf(w, "Duration:\t%dms\n", s.DurationMillis)
	_ = w.Flush()

	if len(s.Outcomes) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "MONTH\tACTION\tDELETED\tINSERTED\tERROR")
		for _, o := range s.Outcomes {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", o.Month, o.Action, o.Deleted, o.Inserted, o.Error)
		}
		_ = w.Flush()
	}

	for _, reason := range s.AbortReasons {
		_, _ = fmt.Fprintf(out, "ABORT: %s\n", reason)
	}
}
