package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

func init() {
	knowledgeCmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kv", "vault"},
		Short:   "Manage validated domain facts",
	}

	addCmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Store a knowledge vault entry",
		Long: "Store a fact with a confidence in [0, 1]. Only entries above the configured " +
			"confidence threshold are retrieved. Content can be a positional arg or piped via stdin.",
		Run: runKnowledgeAdd,
	}
	addCmd.Flags().String("domain", "", "Domain, e.g. nutrition (required)")
	addCmd.Flags().String("topic", "", "Topic (required)")
	addCmd.Flags().String("source", "", "Where the fact comes from")
	addCmd.Flags().Float64("confidence", 0.8, "Confidence in [0, 1]")
	addCmd.Flags().Bool("validated", false, "Mark as validated now")
	addCmd.MarkFlagRequired("domain")
	addCmd.MarkFlagRequired("topic")

	knowledgeCmd.AddCommand(addCmd)
	RootCmd.AddCommand(knowledgeCmd)
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) {
	domain, _ := cmd.Flags().GetString("domain")
	topic, _ := cmd.Flags().GetString("topic")
	source, _ := cmd.Flags().GetString("source")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	validated, _ := cmd.Flags().GetBool("validated")

	content := strings.TrimSpace(readInput(args))
	if content == "" {
		exitErr("knowledge add", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	entry := model.KnowledgeEntry{
		Domain:     domain,
		Topic:      topic,
		Content:    content,
		Source:     source,
		Confidence: confidence,
	}
	if validated {
		now := time.Now().UTC()
		entry.ValidatedAt = &now
	}

	e := openEngine()
	defer e.Close()

	rec, err := e.Knowledge().Create(cmd.Context(), getUser(), entry)
	if err != nil {
		exitErr("knowledge add", err)
	}
	printJSON(rec)
}
