package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ContractGraph/internal/app"
	"ContractGraph/internal/config"
	"ContractGraph/internal/logging"
	"ContractGraph/internal/query"
	"ContractGraph/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "contractgraph",
		Short: "Ingest securities contracts into a queryable property graph",
		Long: `contractgraph scans contract corpora (EDGAR exhibits, uploads), extracts
parties, securities, dates, amounts and closing conditions, and merges them
into a property graph that can be searched with plain-English questions.`,
		SilenceUsage: true,
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one incremental ingestion batch",
		Args:  cobra.NoArgs,
		RunE:  runIngest,
	}
	ingestCmd.Flags().Bool("force", false, "Re-extract every file even when cached")
	ingestCmd.Flags().Int("max", 0, "Process at most this many files (0 uses the configured cap)")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run ingestion on the configured interval until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}

	queryCmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question over the contract graph",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().Bool("json", false, "Print the planned filter and matches as JSON")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show node and edge counts",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the processed-contract cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget every processed file so the next run re-extracts all of them",
		Args:  cobra.NoArgs,
		RunE:  runCacheReset,
	})

	rootCmd.AddCommand(ingestCmd, watchCmd, queryCmd, statsCmd, cacheCmd)
	return rootCmd
}

func openApp(cmd *cobra.Command) (*app.Application, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return app.New(cmd.Context(), cfg, logger)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	maxFiles, _ := cmd.Flags().GetInt("max")

	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Ingest(cmd.Context(), usecase.RunOptions{Force: force, MaxFiles: maxFiles})
	if report.RunID != "" {
		fmt.Fprint(cmd.OutOrStdout(), report.Text())
	}
	if usecase.IsCancelled(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), "run interrupted; completed files are cached and the next run resumes")
		return nil
	}
	return err
}

func runWatch(cmd *cobra.Command, _ []string) error {
	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Watch(cmd.Context())
}

func runQuery(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	answer, err := application.Ask(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printAnswer(cmd, answer, asJSON)
}

func printAnswer(cmd *cobra.Command, answer query.Answer, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprint(cmd.OutOrStdout(), answer.Text)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(answer)
}

func runStats(cmd *cobra.Command, _ []string) error {
	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	stats, err := application.Stats(cmd.Context())
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), query.FormatStats(stats))
	return err
}

func runCacheReset(cmd *cobra.Command, _ []string) error {
	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.ResetCache(); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "processed-contract cache cleared")
	return nil
}
