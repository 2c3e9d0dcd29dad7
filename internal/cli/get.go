package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Retrieve a record by id",
		Long:  "Retrieve one record. The id prefix (core_, epi_, sem_, rel_, proc_, res_, kv_) selects the dimension.",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	e := openEngine()
	defer e.Close()

	rec, err := e.Get(cmd.Context(), getUser(), args[0])
	if err != nil {
		exitErr("get", err)
	}
	if rec == nil {
		exitErr("get", fmt.Errorf("not found: %s", args[0]))
	}
	printJSON(rec)
}
