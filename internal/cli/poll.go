package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll all watched repos for new activity",
		Long: "Run one poll cycle: fetch releases and recent commits for every watched repo,\n" +
			"score new events against project contexts, and write them to the feed.",
		Run: runPoll,
	}

	RootCmd.AddCommand(cmd)
}

func runPoll(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	counts, err := newEngine(cfg, s).PollAll(cmd.Context())
	if err != nil {
		exitErr("poll", err)
	}

	printJSON(counts)
}
