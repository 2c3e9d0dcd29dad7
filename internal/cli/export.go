package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's memories as JSON",
		Long:  "Export every record of the user, all six dimensions plus relationships, as one JSON snapshot.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	e := openEngine()
	defer e.Close()

	snap, err := e.Export(cmd.Context(), getUser())
	if err != nil {
		exitErr("export", err)
	}
	printJSON(snap)
}
