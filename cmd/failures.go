package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	historyRunID  string
	historyLimit  int
	historyOutput string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	RunE:  runRuns,
}

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List notifications that produced no content",
	Long: `Lists audited failures, newest first. Each entry names the notification,
its type, the failure kind (UNRESOLVABLE, TRANSPORT_ERROR, UNSUPPORTED_TYPE,
VALIDATION_ERROR, TIMEOUT or INTERNAL) and the reason.`,
	RunE: runFailures,
}

func init() {
	for _, c := range []*cobra.Command{runsCmd, failuresCmd} {
		c.Flags().IntVarP(&historyLimit, "limit", "n", 0, "maximum number of entries (default 20 runs / 50 failures)")
		c.Flags().StringVarP(&historyOutput, "output", "o", formatTable, "output format: table, json or yaml")
	}
	failuresCmd.Flags().StringVar(&historyRunID, "run", "", "only show failures from this run ID")
}

func runRuns(cmd *cobra.Command, args []string) error {
	if err := validFormat(historyOutput); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := st.ListRuns(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	return writeResult(os.Stdout, runs, historyOutput)
}

func runFailures(cmd *cobra.Command, args []string) error {
	if err := validFormat(historyOutput); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	failures, err := st.ListFailures(ctx, historyRunID, historyLimit)
	if err != nil {
		return fmt.Errorf("listing failures: %w", err)
	}
	return writeResult(os.Stdout, failures, historyOutput)
}
