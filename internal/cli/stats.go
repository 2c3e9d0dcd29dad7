package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	cmd.Flags().Bool("all-users", false, "Count records of every user")

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	allUsers, _ := cmd.Flags().GetBool("all-users")

	e := openEngine()
	defer e.Close()

	user := getUser()
	if allUsers {
		user = ""
	}
	stats, err := e.Stats(cmd.Context(), user)
	if err != nil {
		exitErr("stats", err)
	}

	if !textOutput() {
		printJSON(stats)
		return
	}
	fmt.Printf("backend: %s\n", stats.Backend)
	if stats.DBPath != "" {
		fmt.Printf("db: %s (%d bytes)\n", stats.DBPath, stats.DBSizeBytes)
	}
	for _, d := range model.Dimensions {
		fmt.Printf("%-16s %d\n", d, stats.Dimensions[d])
	}
	fmt.Printf("%-16s %d\n", "relationships", stats.Relationships)
	fmt.Printf("%-16s %d\n", "total", stats.Total)
}
