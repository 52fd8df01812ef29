package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/hubwatch/internal/store"
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Show, move or reset the poll cursor",
}

var cursorShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the creation time after which the next poll starts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		at, err := st.Cursor(cmd.Context(), store.DefaultCursor)
		if err != nil {
			return err
		}
		fmt.Println(formatCursor(at))
		return nil
	},
}

var cursorSetCmd = &cobra.Command{
	Use:   "set <RFC3339 time>",
	Short: "Move the cursor to a specific time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := time.Parse(time.RFC3339, args[0])
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", args[0], err)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := st.SaveCursor(cmd.Context(), store.DefaultCursor, at); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ Cursor set to " + formatCursor(at)))
		return nil
	},
}

var cursorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the cursor so the next poll starts from the beginning",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := st.ResetCursor(cmd.Context(), store.DefaultCursor); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ Cursor reset"))
		return nil
	},
}

func init() {
	cursorCmd.AddCommand(cursorShowCmd, cursorSetCmd, cursorResetCmd)
}
