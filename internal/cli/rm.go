package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete records",
		Long:  "Delete records by id. Deleting a semantic memory also removes its relationships. Core blocks cannot be deleted, only updated. Absent ids are not an error.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	e := openEngine()
	defer e.Close()

	user := getUser()
	for _, id := range args {
		deleted, err := e.Delete(cmd.Context(), user, id)
		if err != nil {
			exitErr("rm", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q,"deleted":%t}`+"\n", id, deleted)
	}
}
