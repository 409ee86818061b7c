package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch owner/repo",
		Short: "Add a repo to the watch list",
		Long:  "Add a repo to the watch list. Watching an already-watched repo is a no-op.",
		Args:  cobra.ExactArgs(1),
		Run:   runWatch,
	}

	RootCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	fullName := args[0]
	if !strings.Contains(fullName, "/") {
		exitErr("watch", fmt.Errorf("expected owner/repo, got %q", fullName))
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	added, err := s.WatchRepo(cmd.Context(), fullName, "manual")
	if err != nil {
		exitErr("watch", err)
	}

	printJSON(map[string]any{"repo": fullName, "added": added})
}
