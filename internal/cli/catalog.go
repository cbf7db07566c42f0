package cli

import (
	"fmt"

	"celeb-trivia-service/internal/catalog"
	"github.com/spf13/cobra"
)

// NewCatalogCmd groups read-only catalog commands.
func NewCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the celebrity catalog",
	}
	cmd.AddCommand(newCatalogCheckCmd(configPath))
	return cmd
}

func newCatalogCheckCmd(configPath *string) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load the configured catalog and report its size and content gaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			doc, err := rt.catalogLoader().LoadCatalog(cmd.Context())
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			built, err := catalog.Build(doc)
			if err != nil {
				return fmt.Errorf("build catalog: %w", err)
			}

			out := cmd.OutOrStdout()
			levels, records := built.Size()
			fmt.Fprintf(out, "version: %s\nlevels: %d\nrecords: %d\n", displayVersion(built.Version()), levels, records)
			for _, def := range built.Categories() {
				fmt.Fprintf(out, "category %s: max level %d\n", def.Name, def.MaxLevel)
			}
			problems := built.Problems()
			for _, p := range problems {
				fmt.Fprintf(out, "problem: %s\n", p)
			}
			if strict && len(problems) > 0 {
				return fmt.Errorf("catalog has %d problems", len(problems))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when content gaps are found")
	return cmd
}

func displayVersion(v string) string {
	if v == "" {
		return "(files)"
	}
	return v
}
