package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watched",
		Short: "List all watched repos",
		Run:   runWatched,
	}

	RootCmd.AddCommand(cmd)
}

func runWatched(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	repos, err := s.ListWatchedRepos(cmd.Context())
	if err != nil {
		exitErr("list watched", err)
	}

	printJSON(map[string]any{"count": len(repos), "repos": repos})
}
