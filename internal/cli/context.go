package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [message]",
		Short: "Assemble the memory context for a message",
		Long: "Query all six dimensions in parallel, rank and cap the hits, and render them " +
			"into sections that fit the character budget. Message can be an arg or piped via stdin.",
		Run: runContext,
	}

	cmd.Flags().IntP("budget", "b", 0, "Budget in characters (default: from config)")
	cmd.Flags().Bool("stats", false, "Print retrieval stats to stderr in text mode")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	showStats, _ := cmd.Flags().GetBool("stats")
	message := strings.TrimSpace(readInput(args))

	cfg := loadConfig()
	if budget > 0 {
		cfg.Context.BudgetChars = budget
	}
	e := openEngineWith(cfg)
	defer e.Close()

	res := e.BuildContext(cmd.Context(), getUser(), message)

	if !textOutput() {
		printJSON(res)
		return
	}
	fmt.Println(res.Context)
	if showStats {
		fmt.Fprintf(os.Stderr, "chars=%d degraded=%t trimmed=%d path=%v counts=%v\n",
			res.Stats.TotalChars, res.Stats.Degraded, res.Stats.Trimmed, res.Stats.Path, res.Stats.PerDimensionCount)
	}
}
