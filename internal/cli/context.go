package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage project contexts",
		Long:  "Register, list, and remove the named interest descriptions that feed events are scored against.",
	}

	add := &cobra.Command{
		Use:   "add name [description]",
		Short: "Register or update a project context",
		Long:  "Register a project context. The description is embedded immediately; re-adding refreshes description and embedding.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runContextAdd,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List project contexts",
		Run:   runContextList,
	}

	rm := &cobra.Command{
		Use:   "rm name",
		Short: "Remove a project context",
		Args:  cobra.ExactArgs(1),
		Run:   runContextRm,
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Re-embed all project contexts",
		Long:  "Re-embed every registered context in one batch, e.g. after switching embedding models.",
		Run:   runContextRefresh,
	}

	cmd.AddCommand(add, list, rm, refresh)
	RootCmd.AddCommand(cmd)
}

func runContextAdd(cmd *cobra.Command, args []string) {
	name := args[0]
	description := strings.Join(args[1:], " ")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	pc, err := newEngine(cfg, s).RegisterContext(cmd.Context(), name, description)
	if err != nil {
		exitErr("add context", err)
	}

	printJSON(pc)
}

func runContextList(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	contexts, err := s.ListContexts(cmd.Context())
	if err != nil {
		exitErr("list contexts", err)
	}

	type contextInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Embedded    bool   `json:"embedded"`
	}
	out := make([]contextInfo, 0, len(contexts))
	for _, c := range contexts {
		out = append(out, contextInfo{
			Name:        c.Name,
			Description: c.Description,
			Embedded:    len(c.Embedding) > 0,
		})
	}

	printJSON(map[string]any{"count": len(out), "contexts": out})
}

func runContextRm(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	removed, err := s.RemoveContext(cmd.Context(), args[0])
	if err != nil {
		exitErr("remove context", err)
	}

	printJSON(map[string]any{"name": args[0], "removed": removed})
}

func runContextRefresh(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	n, err := newEngine(cfg, s).RefreshContextEmbeddings(cmd.Context())
	if err != nil {
		exitErr("refresh contexts", err)
	}

	printJSON(map[string]any{"refreshed": n})
}
