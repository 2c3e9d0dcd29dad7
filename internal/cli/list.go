package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list <dimension>",
		Short: "List every record of one dimension",
		Args:  cobra.ExactArgs(1),
		Run:   runList,
	}

	cmd.Flags().Bool("ids-only", false, "Only output record ids")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	idsOnly, _ := cmd.Flags().GetBool("ids-only")
	d, ok := model.ParseDimension(args[0])
	if !ok {
		exitErr("list", fmt.Errorf("unknown dimension %q", args[0]))
	}

	e := openEngine()
	defer e.Close()

	records, err := e.List(cmd.Context(), getUser(), d)
	if err != nil {
		exitErr("list", err)
	}

	if idsOnly {
		for _, id := range ids(records) {
			fmt.Println(id)
		}
		return
	}
	printJSON(records)
}

// ids extracts record ids from any of the List result slices.
func ids(records any) []string {
	switch rs := records.(type) {
	case []model.CoreMemory:
		return idsOf(rs)
	case []model.EpisodicMemory:
		return idsOf(rs)
	case []model.SemanticMemory:
		return idsOf(rs)
	case []model.SemanticRelationship:
		return idsOf(rs)
	case []model.ProceduralMemory:
		return idsOf(rs)
	case []model.ResourceMemory:
		return idsOf(rs)
	case []model.KnowledgeEntry:
		return idsOf(rs)
	}
	return nil
}

func idsOf[T model.Record](rs []T) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Header().ID
	}
	return out
}
