package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/model"
)

func init() {
	episodeCmd := &cobra.Command{
		Use:     "episode",
		Aliases: []string{"episodic"},
		Short:   "Record and prune timeline events",
	}

	addCmd := &cobra.Command{
		Use:   "add [summary]",
		Short: "Record an event or conversation turn",
		Long:  "Record an episode. The summary can be a positional arg or piped via stdin.",
		Run:   runEpisodeAdd,
	}
	addCmd.Flags().StringP("type", "t", "chat", "Event type")
	addCmd.Flags().StringP("actor", "a", "user", "Actor: user, assistant, system")
	addCmd.Flags().String("details", "", "Longer description")
	addCmd.Flags().String("path", "", "Tree path, slash-separated (e.g. work/project-x)")
	addCmd.Flags().String("at", "", "When it happened (RFC 3339 or YYYY-MM-DD; default: now)")

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete episodes older than a cutoff",
		Run:   runEpisodePrune,
	}
	pruneCmd.Flags().String("before", "", "Cutoff (RFC 3339 or YYYY-MM-DD)")
	pruneCmd.Flags().Duration("older-than", 0, "Cutoff relative to now, e.g. 720h")

	episodeCmd.AddCommand(addCmd, pruneCmd)
	RootCmd.AddCommand(episodeCmd)
}

func runEpisodeAdd(cmd *cobra.Command, args []string) {
	eventType, _ := cmd.Flags().GetString("type")
	actor, _ := cmd.Flags().GetString("actor")
	details, _ := cmd.Flags().GetString("details")
	path, _ := cmd.Flags().GetString("path")
	at, _ := cmd.Flags().GetString("at")

	summary := strings.TrimSpace(readInput(args))
	if summary == "" {
		exitErr("episode add", fmt.Errorf("summary is required (positional arg or stdin)"))
	}
	occurred, err := parseTime(at)
	if err != nil {
		exitErr("episode add", fmt.Errorf("--at: %w", err))
	}
	var treePath []string
	if path != "" {
		treePath = strings.Split(strings.Trim(path, "/"), "/")
	}

	e := openEngine()
	defer e.Close()

	rec, err := e.RecordEpisode(cmd.Context(), getUser(), model.EpisodicMemory{
		EventType:  eventType,
		Summary:    summary,
		Details:    details,
		Actor:      model.Actor(actor),
		TreePath:   treePath,
		OccurredAt: occurred,
	})
	if err != nil {
		exitErr("episode add", err)
	}
	printJSON(rec)
}

func runEpisodePrune(cmd *cobra.Command, args []string) {
	before, _ := cmd.Flags().GetString("before")
	olderThan, _ := cmd.Flags().GetDuration("older-than")

	var cutoff time.Time
	switch {
	case before != "":
		t, err := parseTime(before)
		if err != nil {
			exitErr("episode prune", fmt.Errorf("--before: %w", err))
		}
		cutoff = t
	case olderThan > 0:
		cutoff = time.Now().Add(-olderThan)
	default:
		exitErr("episode prune", fmt.Errorf("one of --before or --older-than is required"))
	}

	e := openEngine()
	defer e.Close()

	n, err := e.Episodic().PruneBefore(cmd.Context(), getUser(), cutoff)
	if err != nil {
		exitErr("episode prune", err)
	}
	fmt.Printf(`{"ok":true,"pruned":%d,"before":%q}`+"\n", n, cutoff.Format(time.RFC3339))
}
