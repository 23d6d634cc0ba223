package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gmickel/docdex/internal/config"
)

func newExpandCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "expand <query>",
		Short: "Show the expansion for a query",
		Long: `Show how a query would be expanded before retrieval: the keyword
variants, the semantic variants and the hypothetical answer passage
when hyde is enabled.

Useful for debugging why a search did or did not match.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runExpand(cmd, query, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output expansion as JSON")

	return cmd
}

func runExpand(cmd *cobra.Command, query string, jsonOut bool) error {
	root := projectRoot()

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	expander := buildExpander(cfg)
	result := expander.Expand(cmd.Context(), query)

	out := cmd.OutOrStdout()

	if jsonOut {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	_, _ = fmt.Fprintf(out, "Query: %q\n\n", query)

	_, _ = fmt.Fprintln(out, "Keyword variants:")
	for _, q := range result.LexicalQueries {
		_, _ = fmt.Fprintf(out, "  - %q\n", q)
	}

	_, _ = fmt.Fprintln(out, "Semantic variants:")
	for _, q := range result.VectorQueries {
		_, _ = fmt.Fprintf(out, "  - %q\n", q)
	}

	if result.Hyde != "" {
		_, _ = fmt.Fprintf(out, "Hypothetical passage:\n  %s\n", result.Hyde)
	}
	if result.Notes != "" {
		_, _ = fmt.Fprintf(out, "Notes: %s\n", result.Notes)
	}

	return nil
}
