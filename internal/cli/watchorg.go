package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch-org org",
		Short: "Watch all matching repos of an organization",
		Long:  "List an org's repos, filtered by language and star count, and add them to the watch list.",
		Args:  cobra.ExactArgs(1),
		Run:   runWatchOrg,
	}

	cmd.Flags().StringP("language", "l", "", "Only repos in this language")
	cmd.Flags().Int("min-stars", 10, "Minimum star count")
	cmd.Flags().Int("limit", 50, "Maximum repos to add")

	RootCmd.AddCommand(cmd)
}

func runWatchOrg(cmd *cobra.Command, args []string) {
	org := args[0]
	language, _ := cmd.Flags().GetString("language")
	minStars, _ := cmd.Flags().GetInt("min-stars")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	repos, err := newGitHub(cfg).GetOrgRepos(cmd.Context(), org, language, minStars, limit)
	if err != nil {
		exitErr("list org repos", err)
	}

	added := 0
	for _, r := range repos {
		ok, err := s.WatchRepo(cmd.Context(), r.FullName, "org:"+org)
		if err != nil {
			exitErr("watch", err)
		}
		if ok {
			added++
		}
	}

	printJSON(map[string]any{"org": org, "matched": len(repos), "added": added})
}
