package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/research-feed/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List stored discovery candidates",
		Run:   runCandidates,
	}

	cmd.Flags().Float64("min-score", 0.5, "Minimum similarity score")
	cmd.Flags().StringP("context", "c", "", "Only candidates matched to this project context")
	cmd.Flags().IntP("limit", "n", 20, "Maximum candidates to return")

	RootCmd.AddCommand(cmd)
}

func runCandidates(cmd *cobra.Command, args []string) {
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	contextName, _ := cmd.Flags().GetString("context")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	candidates, err := s.ListCandidates(cmd.Context(), store.CandidateQuery{
		MinScore: minScore,
		Context:  contextName,
		Limit:    limit,
	})
	if err != nil {
		exitErr("list candidates", err)
	}

	printJSON(map[string]any{"count": len(candidates), "candidates": candidates})
}
