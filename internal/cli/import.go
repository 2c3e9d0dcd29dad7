package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import memories from JSON",
		Long:  "Import a snapshot produced by export, from a file or stdin. Records whose id already exists are skipped.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		exitErr("parse json", err)
	}
	if snap.UserID == "" {
		snap.UserID = getUser()
	}

	e := openEngine()
	defer e.Close()

	imported, err := e.Import(cmd.Context(), &snap)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"user_id":%q,"imported":%d}`+"\n", snap.UserID, imported)
}
