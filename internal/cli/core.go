package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

func init() {
	coreCmd := &cobra.Command{
		Use:   "core",
		Short: "Show or set the persona and human blocks",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the user's core memory",
		Run:   runCoreShow,
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Set the user's core memory",
		Long:  "Create or overwrite the core block. Flags left unset keep their current value.",
		Run:   runCoreSet,
	}
	setCmd.Flags().String("persona", "", "Persona block (who the assistant is)")
	setCmd.Flags().String("human", "", "Human block (who the user is)")
	setCmd.Flags().Int("persona-limit", 0, "Persona character limit (default: from config)")
	setCmd.Flags().Int("human-limit", 0, "Human character limit (default: from config)")

	coreCmd.AddCommand(showCmd, setCmd)
	RootCmd.AddCommand(coreCmd)
}

func runCoreShow(cmd *cobra.Command, args []string) {
	e := openEngine()
	defer e.Close()

	core, err := e.Core().ForUser(cmd.Context(), getUser())
	if err != nil {
		exitErr("core show", err)
	}
	if core == nil {
		exitErr("core show", fmt.Errorf("no core memory for %s", getUser()))
	}
	if textOutput() {
		fmt.Printf("Persona (%d/%d): %s\n", len([]rune(core.PersonaValue)), core.PersonaLimit, core.PersonaValue)
		fmt.Printf("Human (%d/%d): %s\n", len([]rune(core.HumanValue)), core.HumanLimit, core.HumanValue)
		return
	}
	printJSON(core)
}

func runCoreSet(cmd *cobra.Command, args []string) {
	flags := cmd.Flags()

	e := openEngine()
	defer e.Close()

	user := getUser()
	var rec model.CoreMemory
	existing, err := e.Core().ForUser(cmd.Context(), user)
	if err != nil {
		exitErr("core set", err)
	}
	if existing != nil {
		rec = *existing
	}
	if flags.Changed("persona") {
		rec.PersonaValue, _ = flags.GetString("persona")
	}
	if flags.Changed("human") {
		rec.HumanValue, _ = flags.GetString("human")
	}
	if flags.Changed("persona-limit") {
		rec.PersonaLimit, _ = flags.GetInt("persona-limit")
	}
	if flags.Changed("human-limit") {
		rec.HumanLimit, _ = flags.GetInt("human-limit")
	}

	saved, err := e.Core().Create(cmd.Context(), user, rec)
	if err != nil {
		exitErr("core set", err)
	}
	printJSON(saved)
}
