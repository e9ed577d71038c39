package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gend/internal/engine"
	"gend/internal/registry"
	"gend/internal/stats"
)

const version = "1.0.0"

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gend",
		Short:         "Generation session daemon for local LLM inference",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), modelsCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("gend %s (llama engine built: %v)\n", version, engine.Built())
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	var registryPath string
	var showStats bool
	var statsDB string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models from a registry file",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadFile(registryPath)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			for _, m := range reg.List() {
				thinking := ""
				if m.Thinking {
					thinking = " (thinking)"
				}
				fmt.Printf("%-40s %-24s %s%s\n", m.ID, m.Friendly, m.Dtype, thinking)
			}
			if showStats {
				return printRunStats(statsDB)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&registryPath, "registry", envStr("GEND_REGISTRY", "registry.yaml"), "Path to the model registry file (yaml or json)")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Also print recorded run statistics")
	cmd.Flags().StringVar(&statsDB, "stats-db", envStr("GEND_STATS_DB", ""), "Path to the run-statistics SQLite database")
	return cmd
}

// printRunStats prints all-time totals and the most recent runs from the
// statistics database.
func printRunStats(path string) error {
	if path == "" {
		return fmt.Errorf("--stats requires --stats-db (or GEND_STATS_DB)")
	}
	store, err := stats.Open(path, zerolog.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	runs, tokens, err := store.Totals()
	if err != nil {
		return err
	}
	fmt.Printf("\nruns: %d  tokens: %d\n", runs, tokens)

	recent, err := store.Recent(10)
	if err != nil {
		return err
	}
	for _, r := range recent {
		flag := ""
		if r.Interrupted {
			flag = " (interrupted)"
		}
		fmt.Printf("%s  %-40s %5d tok  %6.1f tok/s%s\n",
			time.Unix(r.CompletedUnix, 0).Format(time.RFC3339), r.ModelID, r.NumTokens, r.TokensPerSecond, flag)
	}
	return nil
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// envStr returns the environment value for key, or def when unset.
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt returns the integer environment value for key, or def when unset or
// unparsable.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// splitCSV splits a comma-separated flag value, trimming whitespace and
// dropping empty items.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
