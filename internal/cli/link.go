package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

func init() {
	linkCmd := &cobra.Command{
		Use:   "link",
		Short: "Relate two semantic memories",
		Long:  "Create a weighted edge between two semantic memories of the same user, or remove one with --rm.",
		Run:   runLink,
	}
	linkCmd.Flags().String("from", "", "Source semantic id")
	linkCmd.Flags().String("to", "", "Target semantic id")
	linkCmd.Flags().StringP("rel", "r", "related_to", "Relationship type, e.g. related_to, causes, part_of")
	linkCmd.Flags().Float64P("strength", "s", 1, "Edge strength in [0, 1]")
	linkCmd.Flags().String("rm", "", "Remove the relationship with this id instead")

	edgesCmd := &cobra.Command{
		Use:   "edges [semantic-id]",
		Short: "List relationships, optionally those touching one concept",
		Args:  cobra.MaximumNArgs(1),
		Run:   runEdges,
	}

	semanticCmd.AddCommand(linkCmd, edgesCmd)
}

func runLink(cmd *cobra.Command, args []string) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	rel, _ := cmd.Flags().GetString("rel")
	strength, _ := cmd.Flags().GetFloat64("strength")
	rm, _ := cmd.Flags().GetString("rm")

	e := openEngine()
	defer e.Close()

	if rm != "" {
		deleted, err := e.Semantic().Unlink(cmd.Context(), getUser(), rm)
		if err != nil {
			exitErr("unlink", err)
		}
		fmt.Printf(`{"ok":true,"id":%q,"deleted":%t}`+"\n", rm, deleted)
		return
	}

	link, err := e.Semantic().Link(cmd.Context(), getUser(), model.SemanticRelationship{
		SourceID:         from,
		TargetID:         to,
		RelationshipType: rel,
		Strength:         strength,
	})
	if err != nil {
		exitErr("link", err)
	}
	printJSON(link)
}

func runEdges(cmd *cobra.Command, args []string) {
	var node string
	if len(args) == 1 {
		node = args[0]
	}

	e := openEngine()
	defer e.Close()

	edges, err := e.Semantic().Relationships(cmd.Context(), getUser(), node)
	if err != nil {
		exitErr("edges", err)
	}
	if textOutput() {
		for _, r := range edges {
			fmt.Printf("%s  %s -[%s %.2f]-> %s\n", r.ID, r.SourceID, r.RelationshipType, r.Strength, r.TargetID)
		}
		return
	}
	printJSON(edges)
}
