package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

func init() {
	procedureCmd := &cobra.Command{
		Use:     "procedure",
		Aliases: []string{"procedural"},
		Short:   "Manage step-by-step procedures",
	}

	addCmd := &cobra.Command{
		Use:   "add [description]",
		Short: "Add a step to a procedure",
		Long: "Add one step. Without --step the step is appended; with --step it is inserted and " +
			"later steps shift down. The description can be a positional arg or piped via stdin.",
		Run: runProcedureAdd,
	}
	addCmd.Flags().StringP("name", "n", "", "Procedure name (required)")
	addCmd.Flags().Int("step", 0, "Step number (default: append)")
	addCmd.Flags().String("when", "", "Conditions, comma-separated")
	addCmd.Flags().String("do", "", "Actions, comma-separated")
	addCmd.Flags().String("expect", "", "Expected results, comma-separated")
	addCmd.MarkFlagRequired("name")

	showCmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Show a procedure's steps, or list procedure names",
		Args:  cobra.MaximumNArgs(1),
		Run:   runProcedureShow,
	}

	procedureCmd.AddCommand(addCmd, showCmd)
	RootCmd.AddCommand(procedureCmd)
}

func runProcedureAdd(cmd *cobra.Command, args []string) {
	name, _ := cmd.Flags().GetString("name")
	step, _ := cmd.Flags().GetInt("step")
	when, _ := cmd.Flags().GetString("when")
	do, _ := cmd.Flags().GetString("do")
	expect, _ := cmd.Flags().GetString("expect")

	description := strings.TrimSpace(readInput(args))
	if description == "" {
		exitErr("procedure add", fmt.Errorf("description is required (positional arg or stdin)"))
	}

	e := openEngine()
	defer e.Close()

	user := getUser()
	if step == 0 {
		steps, err := e.Procedural().Steps(cmd.Context(), user, name)
		if err != nil {
			exitErr("procedure add", err)
		}
		step = len(steps) + 1
	}

	rec, err := e.Procedural().Create(cmd.Context(), user, model.ProceduralMemory{
		ProcedureName:   name,
		StepNumber:      step,
		Description:     description,
		Conditions:      splitList(when),
		Actions:         splitList(do),
		ExpectedResults: splitList(expect),
	})
	if err != nil {
		exitErr("procedure add", err)
	}
	printJSON(rec)
}

func runProcedureShow(cmd *cobra.Command, args []string) {
	e := openEngine()
	defer e.Close()

	user := getUser()
	if len(args) == 0 {
		names, err := e.Procedural().Procedures(cmd.Context(), user)
		if err != nil {
			exitErr("procedure show", err)
		}
		if textOutput() {
			for _, n := range names {
				fmt.Println(n)
			}
			return
		}
		printJSON(names)
		return
	}

	steps, err := e.Procedural().Steps(cmd.Context(), user, args[0])
	if err != nil {
		exitErr("procedure show", err)
	}
	if textOutput() {
		fmt.Printf("Procedure: %s\n", args[0])
		for _, s := range steps {
			fmt.Printf("  %d. %s\n", s.StepNumber, s.Description)
		}
		return
	}
	printJSON(steps)
}
