package cmd

import (
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/hubwatch/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long:  `Opens the interactive terminal UI for browsing recent runs, the poll cursor and audited failures.`,
	RunE:  runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return tui.NewApp(st, cfg.Hub.URL).Run()
}
