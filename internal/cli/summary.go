package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "summary owner/repo",
		Short: "Summarize a repo from live metadata",
		Long: "Fetch live repo metadata and README and generate a tailored summary.\n" +
			"With --context, also score relevance against that project context.",
		Args: cobra.ExactArgs(1),
		Run:  runSummary,
	}

	cmd.Flags().StringP("context", "c", "", "Score and frame the summary relative to this project context")

	RootCmd.AddCommand(cmd)
}

func runSummary(cmd *cobra.Command, args []string) {
	contextName, _ := cmd.Flags().GetString("context")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	report, err := newEngine(cfg, s).RepoSummary(cmd.Context(), args[0], contextName)
	if err != nil {
		exitErr("summary", err)
	}

	printJSON(report)
}
