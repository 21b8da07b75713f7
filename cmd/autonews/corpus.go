package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"AutoNews/internal/app"
	"AutoNews/internal/domain"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Inspect the published corpus",
}

var corpusStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts and embedding dimension",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		corp, err := app.OpenCorpus(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer corp.Close()

		stats := corp.Stats()
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		fmt.Printf("\n%s\n", cyan("=== Corpus ==="))
		fmt.Printf("  Backend:          %s\n", cfg.Corpus.Backend)
		fmt.Printf("  Entries:          %d\n", stats.Entries)
		fmt.Printf("  With embedding:   %d\n", stats.WithEmbedding)
		if missing := stats.Entries - stats.WithEmbedding; missing > 0 {
			fmt.Printf("  Without:          %s\n", yellow(missing))
		} else {
			fmt.Printf("  Without:          0\n")
		}
		if stats.Skipped > 0 {
			fmt.Printf("  Wrong dimension:  %s\n", yellow(stats.Skipped))
		}
		fmt.Printf("  Dimension:        %d\n\n", stats.Dimension)
		return nil
	},
}

var corpusCheckCmd = &cobra.Command{
	Use:   "check <title> <lead>",
	Short: "Run the duplicate check for a title and lead without enqueuing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		corp, err := app.OpenCorpus(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer corp.Close()

		red := color.New(color.FgRed, color.Bold).SprintFunc()
		if link := strings.TrimSpace(checkLink); link != "" && corp.HasLink(link) {
			fmt.Printf("%s at %s stage: link already published\n", red("duplicate"), domain.StageLink)
			return nil
		}

		text := domain.ComparisonText(args[0], args[1])
		result := app.NewCascade(cfg, corp, nil, logger).Check(cmd.Context(), text)

		green := color.New(color.FgGreen, color.Bold).SprintFunc()
		if !result.IsDuplicate() {
			fmt.Printf("%s (compared against %d indexed entries)\n", green("novel"), corp.Stats().WithEmbedding)
			if result.Embedding == nil {
				fmt.Println(color.YellowString("warning: embedding failed, only the link check applies"))
			}
			return nil
		}
		fmt.Printf("%s at %s stage\n", red("duplicate"), result.Stage)
		fmt.Printf("  Matched: %s\n", result.MatchedLink)
		fmt.Printf("  Score:   %.3f\n", result.Score)
		return nil
	},
}

var checkLink string

func init() {
	corpusCheckCmd.Flags().StringVar(&checkLink, "link", "", "also check whether this link is already published")
	corpusCmd.AddCommand(corpusStatsCmd, corpusCheckCmd)
	rootCmd.AddCommand(corpusCmd)
}
