package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

func init() {
	resourceCmd := &cobra.Command{
		Use:     "resource",
		Aliases: []string{"resources"},
		Short:   "Manage pointers to files, URLs, images and documents",
	}

	addCmd := &cobra.Command{
		Use:   "add [summary]",
		Short: "Record an external resource",
		Run:   runResourceAdd,
	}
	addCmd.Flags().StringP("name", "n", "", "Resource name (required)")
	addCmd.Flags().StringP("location", "l", "", "Path or URL (required)")
	addCmd.Flags().String("type", "file", "Type: file, url, image, document")
	addCmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	addCmd.MarkFlagRequired("name")
	addCmd.MarkFlagRequired("location")

	resourceCmd.AddCommand(addCmd)
	RootCmd.AddCommand(resourceCmd)
}

func runResourceAdd(cmd *cobra.Command, args []string) {
	name, _ := cmd.Flags().GetString("name")
	location, _ := cmd.Flags().GetString("location")
	typ, _ := cmd.Flags().GetString("type")
	tags, _ := cmd.Flags().GetString("tags")

	e := openEngine()
	defer e.Close()

	rec, err := e.Resources().Create(cmd.Context(), getUser(), model.ResourceMemory{
		ResourceType: model.ResourceType(typ),
		Name:         name,
		Location:     location,
		Summary:      strings.TrimSpace(readInput(args)),
		Tags:         splitList(tags),
	})
	if err != nil {
		exitErr("resource add", err)
	}
	if textOutput() {
		fmt.Println(rec.ID)
		return
	}
	printJSON(rec)
}
