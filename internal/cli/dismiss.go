package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "dismiss owner/repo",
		Short: "Dismiss a discovery candidate",
		Long:  "Mark a discovery candidate as dismissed so it stops appearing in candidate listings.",
		Args:  cobra.ExactArgs(1),
		Run:   runDismiss,
	}

	RootCmd.AddCommand(cmd)
}

func runDismiss(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	dismissed, err := s.DismissCandidate(cmd.Context(), args[0])
	if err != nil {
		exitErr("dismiss", err)
	}

	printJSON(map[string]any{"repo": args[0], "dismissed": dismissed})
}
