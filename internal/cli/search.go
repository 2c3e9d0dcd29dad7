package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search one dimension, or all of them",
		Long:  "Run a dimension's own search (vector similarity with keyword fallback) and print the scored hits.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().String("dim", "", "Dimension to search (default: every dimension)")
	cmd.Flags().IntP("limit", "l", 0, "Max results per dimension (default: from config)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	dim, _ := cmd.Flags().GetString("dim")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	dims := model.Dimensions
	if dim != "" {
		d, ok := model.ParseDimension(dim)
		if !ok {
			exitErr("search", fmt.Errorf("unknown dimension %q", dim))
		}
		dims = []model.Dimension{d}
	}

	e := openEngine()
	defer e.Close()

	user := getUser()
	results := make(map[model.Dimension]any, len(dims))
	for _, d := range dims {
		hits, err := e.Search(cmd.Context(), user, d, query, limit)
		if err != nil {
			exitErr("search "+string(d), err)
		}
		results[d] = hits
	}

	if len(dims) == 1 {
		printJSON(results[dims[0]])
		return
	}
	printJSON(results)
}
