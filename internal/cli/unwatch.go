package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "unwatch owner/repo",
		Short: "Remove a repo from the watch list",
		Args:  cobra.ExactArgs(1),
		Run:   runUnwatch,
	}

	RootCmd.AddCommand(cmd)
}

func runUnwatch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	removed, err := s.UnwatchRepo(cmd.Context(), args[0])
	if err != nil {
		exitErr("unwatch", err)
	}

	printJSON(map[string]any{"repo": args[0], "removed": removed})
}
