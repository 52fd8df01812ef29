package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/hubwatch/internal/config"
	"github.com/CosmoTheDev/hubwatch/internal/database"
	"github.com/CosmoTheDev/hubwatch/internal/notify"
	"github.com/CosmoTheDev/hubwatch/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify configuration, hub, database and cache connectivity",
	Long: `Checks that the configuration is valid, the hub answers with the configured
token, the database can be reached and migrated, the resolver cache is
reachable when enabled, and lists the notification channels that are set up.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== hubwatch doctor ===")
	fmt.Println()

	fmt.Print("Configuration ............ ")
	if err := cfg.Validate(); err != nil {
		fmt.Printf("FAIL\n%s\n", indent(err.Error()))
		allOK = false
	} else {
		fmt.Println("OK")
	}

	fmt.Print("Hub ...................... ")
	switch client, err := newHubClient(cfg); {
	case err != nil:
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	default:
		if v, err := client.Version(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (%s, version %s)\n", client.BaseURL(), v)
		}
	}

	fmt.Print("Database ................. ")
	if db, err := database.New(cfg.Database); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else if err := db.Migrate(ctx); err != nil {
			fmt.Printf("FAIL (migrate: %s)\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (%s: %s)\n", db.Driver(), databaseLocation(cfg.Database))
			if at, err := store.New(db).Cursor(ctx, store.DefaultCursor); err == nil {
				fmt.Printf("Cursor ................... %s\n", formatCursor(at))
			}
		}
		db.Close()
	}

	fmt.Print("Resolver cache ........... ")
	if !cfg.Cache.Enabled {
		fmt.Println("disabled")
	} else {
		rdb := newRedisClient(cfg.Cache)
		if err := rdb.Ping(ctx).Err(); err != nil {
			fmt.Printf("WARN (%s unreachable: %s; polls run uncached)\n", cfg.Cache.RedisAddr, err)
		} else {
			fmt.Printf("OK (redis %s, ttl %s)\n", cfg.Cache.RedisAddr, cfg.Cache.TTL())
		}
		rdb.Close()
	}

	fmt.Print("Notifications ............ ")
	d := notify.NewDispatcher(cfg.Notify)
	if !d.IsAnyConfigured() {
		fmt.Println("none configured (items are printed and recorded only)")
	} else {
		fmt.Printf("OK (%s)\n", strings.Join(d.Channels(), ", "))
	}
	d.Close()

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed. hubwatch is ready!"))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed. Run 'hubwatch config path' to locate the config file."))
	}
	return nil
}

func databaseLocation(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return "dsn configured"
	}
	return cfg.Path
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
