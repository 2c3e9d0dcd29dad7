package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

var semanticCmd = &cobra.Command{
	Use:   "semantic",
	Short: "Manage concepts and the relationships between them",
}

func init() {
	addCmd := &cobra.Command{
		Use:   "add [description]",
		Short: "Store a concept or fact",
		Long:  "Store a semantic memory. The description can be a positional arg or piped via stdin.",
		Run:   runSemanticAdd,
	}
	addCmd.Flags().StringP("name", "n", "", "Concept name (required)")
	addCmd.Flags().String("category", "", "Category")
	addCmd.MarkFlagRequired("name")

	semanticCmd.AddCommand(addCmd)
	RootCmd.AddCommand(semanticCmd)
}

func runSemanticAdd(cmd *cobra.Command, args []string) {
	name, _ := cmd.Flags().GetString("name")
	category, _ := cmd.Flags().GetString("category")
	description := strings.TrimSpace(readInput(args))

	e := openEngine()
	defer e.Close()

	rec, err := e.Semantic().Create(cmd.Context(), getUser(), model.SemanticMemory{
		Name:        name,
		Description: description,
		Category:    category,
	})
	if err != nil {
		exitErr("semantic add", err)
	}
	if textOutput() {
		fmt.Println(rec.ID)
		return
	}
	printJSON(rec)
}
