package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

func init() {
	putCmd := &cobra.Command{
		Use:   "put <dimension> [json]",
		Short: "Store a record from JSON",
		Long: "Store a record of any dimension (core, episodic, semantic, relationship, procedural, " +
			"resource, knowledge_vault). The JSON record can be an arg or piped via stdin.",
		Args: cobra.MinimumNArgs(1),
		Run:  runPut,
	}

	updateCmd := &cobra.Command{
		Use:   "update <id> [json]",
		Short: "Patch a record from JSON",
		Long:  "Apply a partial update. Fields left out of the JSON patch are unchanged.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runUpdate,
	}

	RootCmd.AddCommand(putCmd, updateCmd)
}

func runPut(cmd *cobra.Command, args []string) {
	d, ok := model.ParseDimension(args[0])
	if !ok {
		exitErr("put", fmt.Errorf("unknown dimension %q", args[0]))
	}
	body := strings.TrimSpace(readInput(args[1:]))
	if body == "" {
		exitErr("put", fmt.Errorf("a JSON record is required (positional arg or stdin)"))
	}

	e := openEngine()
	defer e.Close()

	rec, err := e.Create(cmd.Context(), getUser(), d, []byte(body))
	if err != nil {
		exitErr("put", err)
	}
	printJSON(rec)
}

func runUpdate(cmd *cobra.Command, args []string) {
	body := strings.TrimSpace(readInput(args[1:]))
	if body == "" {
		exitErr("update", fmt.Errorf("a JSON patch is required (positional arg or stdin)"))
	}

	e := openEngine()
	defer e.Close()

	rec, err := e.Update(cmd.Context(), getUser(), args[0], []byte(body))
	if err != nil {
		exitErr("update", err)
	}
	printJSON(rec)
}
