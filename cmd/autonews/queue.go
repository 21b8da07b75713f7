package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"AutoNews/internal/domain"
	"AutoNews/internal/infrastructure/storage"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the publish queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending and dead-lettered posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.OpenBoltQueue(cfg.Queue.Path)
		if err != nil {
			return fmt.Errorf("%w (is autonews run holding the queue?)", err)
		}
		defer store.Close()

		pending, err := store.LoadPending()
		if err != nil {
			return err
		}
		dead, err := store.LoadDeadLetters()
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		red := color.New(color.FgRed, color.Bold).SprintFunc()

		fmt.Printf("\n%s\n", cyan(fmt.Sprintf("=== Pending (%d) ===", len(pending))))
		printPosts(pending)
		fmt.Printf("\n%s\n", red(fmt.Sprintf("=== Dead letter (%d) ===", len(dead))))
		printPosts(dead)
		fmt.Println()
		return nil
	},
}

func printPosts(posts []domain.QueuedPost) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if len(posts) == 0 {
		fmt.Printf("  %s\n", gray("empty"))
		return
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	for _, p := range posts {
		fmt.Printf("  %s %s\n", gray(p.EnqueuedAt.Format("2006-01-02 15:04")), p.Candidate.Title)
		fmt.Printf("    %s  [%s]\n", p.Candidate.Link, p.Candidate.Source)
		if p.Attempts > 0 {
			fmt.Printf("    attempts: %s  last error: %s\n", yellow(p.Attempts), p.LastError)
		}
	}
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	rootCmd.AddCommand(queueCmd)
}
