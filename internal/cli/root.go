// Package cli implements the sixmem CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/config"
	"github.com/rcliao/sixmem/internal/engine"
)

var (
	configPath string
	dbPath     string
	formatFlag string
	userFlag   string
	logLevel   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "sixmem",
	Short: "Six-dimension memory for conversational agents",
	Long: "Stores core, episodic, semantic, procedural, resource and knowledge memories per user " +
		"and assembles a budgeted context block for each conversation turn.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $SIXMEM_CONFIG or ~/.sixmem/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $SIXMEM_DB or ~/.sixmem/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User id (default: $SIXMEM_USER or \"default\")")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg
}

// newLogger writes to stderr so stdout stays clean for JSON and MCP stdio.
func newLogger(cfg *config.Config) *slog.Logger {
	log, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		exitErr("logger", err)
	}
	return log
}

func openEngineWith(cfg *config.Config) *engine.Engine {
	e, err := engine.New(cfg, engine.Options{Logger: newLogger(cfg)})
	if err != nil {
		exitErr("open engine", err)
	}
	return e
}

func openEngine() *engine.Engine {
	return openEngineWith(loadConfig())
}

func getUser() string {
	if userFlag != "" {
		return userFlag
	}
	if env := os.Getenv("SIXMEM_USER"); env != "" {
		return env
	}
	return "default"
}

func textOutput() bool { return strings.EqualFold(formatFlag, "text") }

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitErr("encode output", err)
	}
	fmt.Println(string(b))
}

// readInput returns the positional args joined, or piped stdin when there
// are none.
func readInput(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return string(b)
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseTime accepts RFC 3339 or a date; empty means zero.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
