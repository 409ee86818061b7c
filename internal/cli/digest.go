package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/research-feed/internal/feed"
)

func init() {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Show recent feed activity ranked by relevance",
		Run:   runDigest,
	}

	cmd.Flags().Int("days", 7, "How many days back to look")
	cmd.Flags().Float64("min-relevance", 0, "Minimum relevance score (0.0-1.0)")
	cmd.Flags().StringP("context", "c", "", "Only events matched to this project context")
	cmd.Flags().Bool("summarize", false, "Include an AI-generated digest summary")

	RootCmd.AddCommand(cmd)
}

func runDigest(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")
	minRelevance, _ := cmd.Flags().GetFloat64("min-relevance")
	contextName, _ := cmd.Flags().GetString("context")
	summarize, _ := cmd.Flags().GetBool("summarize")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	digest, err := newEngine(cfg, s).GetDigest(cmd.Context(), feed.DigestQuery{
		DaysBack:     days,
		MinRelevance: minRelevance,
		Context:      contextName,
		Summarize:    summarize,
	})
	if err != nil {
		exitErr("digest", err)
	}

	printJSON(digest)
}
