package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/research-feed/internal/feed"
)

func init() {
	cmd := &cobra.Command{
		Use:   "discover query...",
		Short: "Search GitHub and rank results against your contexts",
		Long: "Search GitHub repos and score each result against all project contexts.\n" +
			"High-scoring results are stored as discovery candidates.",
		Args: cobra.MinimumNArgs(1),
		Run:  runDiscover,
	}

	cmd.Flags().StringP("language", "l", "", "Only repos in this language")
	cmd.Flags().Int("min-stars", 50, "Minimum star count")
	cmd.Flags().IntP("limit", "n", 10, "Number of results to return")

	RootCmd.AddCommand(cmd)
}

func runDiscover(cmd *cobra.Command, args []string) {
	language, _ := cmd.Flags().GetString("language")
	minStars, _ := cmd.Flags().GetInt("min-stars")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	results, err := newEngine(cfg, s).Discover(cmd.Context(), feed.DiscoverQuery{
		Query:    strings.Join(args, " "),
		Language: language,
		MinStars: minStars,
		Limit:    limit,
	})
	if err != nil {
		exitErr("discover", err)
	}

	printJSON(map[string]any{"count": len(results), "results": results})
}
