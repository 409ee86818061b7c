package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync-starred user",
		Short: "Watch a user's starred repos",
		Long:  "Fetch the repos a user has starred and add them to the watch list.",
		Args:  cobra.ExactArgs(1),
		Run:   runSyncStarred,
	}

	cmd.Flags().Int("limit", 200, "Maximum starred repos to sync")

	RootCmd.AddCommand(cmd)
}

func runSyncStarred(cmd *cobra.Command, args []string) {
	user := args[0]
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	repos, err := newGitHub(cfg).GetStarred(cmd.Context(), user, limit)
	if err != nil {
		exitErr("fetch starred", err)
	}

	added := 0
	for _, r := range repos {
		ok, err := s.WatchRepo(cmd.Context(), r.FullName, "starred")
		if err != nil {
			exitErr("watch", err)
		}
		if ok {
			added++
		}
	}

	printJSON(map[string]any{"user": user, "starred": len(repos), "added": added})
}
