package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/meghashyamc/corescout/api"
	"github.com/meghashyamc/corescout/db/searchdb"
	"github.com/meghashyamc/corescout/services/export"
	"github.com/meghashyamc/corescout/services/extract"
	"github.com/meghashyamc/corescout/services/index"
	"github.com/meghashyamc/corescout/services/search"
	"github.com/spf13/cobra"
)

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	return api.Run(cmd.Context(), cfg, log)
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <folder>",
	Short: "Build an index from a folder",
	Long: `Build an index from every file under a folder.

Examples:
  corescout ingest ./field_reports --index reports
  corescout ingest ./archive --index archive --overwrite --file-types pdf,docx,txt
  corescout ingest ./archive --index archive --file-types all`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("index")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		fileTypes, _ := cmd.Flags().GetStringSlice("file-types")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")
		noText, _ := cmd.Flags().GetBool("no-text")
		noCoordinates, _ := cmd.Flags().GetBool("no-coordinates")

		if !cmd.Flags().Changed("file-types") {
			fileTypes = cfg.GetDefaultFileTypes()
		}
		if len(fileTypes) == 1 && strings.EqualFold(fileTypes[0], "all") {
			fileTypes = nil
		}

		files, err := index.DiscoverFiles(log, args[0], exclude)
		if err != nil {
			return err
		}

		store, err := searchdb.Open(log, cfg.GetStorePath())
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		service := index.New(log, cfg, index.NewBuilder(log, store), extract.Default())
		progressDone := make(chan struct{})
		summary, err := service.Ingest(ctx, index.Request{
			IndexName: name,
			Overwrite: overwrite,
			Options: index.Options{
				ExtractText:        !noText,
				ExtractCoordinates: !noCoordinates,
				FileTypes:          fileTypes,
			},
			Files: files,
		}, func(run *index.Run) {
			go func() {
				defer close(progressDone)
				printProgress(cmd.ErrOrStderr(), run.Progress())
			}()
		})
		if err != nil {
			return err
		}
		<-progressDone

		return printJSON(cmd.OutOrStdout(), summary)
	},
}

func printProgress(w io.Writer, reporter *index.Reporter) {
	for event := range reporter.Events() {
		fmt.Fprintf(w, "\r[%d/%d] %s\033[K", event.Processed, event.Total, event.CurrentFile)
	}
	fmt.Fprintln(w)
}

func init() {
	ingestCmd.Flags().String("index", "", "name of the index to build")
	ingestCmd.Flags().Bool("overwrite", false, "replace the index if it already exists")
	ingestCmd.Flags().StringSlice("file-types", nil, "extensions to ingest, or \"all\" (defaults to ingest.default_file_types)")
	ingestCmd.Flags().StringSlice("exclude", nil, "folders to skip, relative to the ingested folder")
	ingestCmd.Flags().Bool("no-text", false, "do not store extracted text")
	ingestCmd.Flags().Bool("no-coordinates", false, "do not extract grid references")
	ingestCmd.MarkFlagRequired("index")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <index> [query]",
	Short: "Search an index",
	Long: `Search an index. Without a query every record is listed.

Query syntax: terms, "quoted phrases", prefix*, AND, OR, NOT and parentheses.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := searchdb.Open(log, cfg.GetStorePath())
		if err != nil {
			return err
		}
		defer store.Close()

		service, err := search.New(log, cfg, store)
		if err != nil {
			return err
		}
		if limit == 0 {
			limit = service.DefaultLimit()
		}

		results, err := service.Search(cmd.Context(), args[0], queryArg(args), limit)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), results)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d of %d matches\n", len(results.Results), results.Total)
		for _, result := range results.Results {
			fmt.Fprintf(out, "\n[%d] %s (%.3f)", result.ID, result.SourcePath, result.Score)
			if result.Latitude != nil && result.Longitude != nil {
				fmt.Fprintf(out, " @ %.5f,%.5f", *result.Latitude, *result.Longitude)
			}
			fmt.Fprintf(out, "\n    %s\n", strings.ReplaceAll(result.Snippet, "\n", " "))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntP("limit", "n", 0, "maximum number of results (defaults to search.default_limit)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export <index> [query]",
	Short: "Export matching records with coordinates as KML",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, _ := cmd.Flags().GetString("field")
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")

		store, err := searchdb.Open(log, cfg.GetStorePath())
		if err != nil {
			return err
		}
		defer store.Close()

		searcher, err := search.New(log, cfg, store)
		if err != nil {
			return err
		}
		service := export.New(log, cfg, searcher.WithMaxLimit(cfg.GetMaxExportLimit()))

		var w io.Writer = cmd.OutOrStdout()
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("could not create %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		metadata, err := service.Export(cmd.Context(), w, export.Request{
			IndexName:       args[0],
			Query:           queryArg(args),
			CoordinateField: field,
			Limit:           limit,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d placemarks, skipped %d records without coordinates\n", metadata.Exported, metadata.Skipped)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("field", string(export.FieldCoordinates), "coordinate source: coordinates, mgrs or raw_coordinate_text")
	exportCmd.Flags().IntP("limit", "n", 0, "maximum number of records (defaults to export.max_limit)")
	exportCmd.Flags().StringP("output", "o", "", "file to write, stdout when empty")
}

// --- indexes ---

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "List stored indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := searchdb.Open(log, cfg.GetStorePath())
		if err != nil {
			return err
		}
		defer store.Close()

		indexes, err := store.ListIndexes(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), indexes)
	},
}

// --- formats ---

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported file formats",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), extract.Default().SupportedFormats())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, ingestCmd, searchCmd, exportCmd, indexesCmd, formatsCmd)
}

func queryArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
