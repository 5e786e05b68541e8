package cmd

import (
	"fmt"

	"github.com/pders01/research-collector/internal/catalog"
	"github.com/pders01/research-collector/internal/config"
	"github.com/pders01/research-collector/internal/models"
	"github.com/spf13/cobra"
)

var (
	topicsJSON bool
	topicsToon bool
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Show the active topic catalog",
	Long: `Display the topics and queries research cycles select from.

The catalog is read from research.catalog, or the built-in default when unset.

Examples:
  collector topics
  collector topics --toon`,
	RunE: runTopicsCmd,
}

func init() {
	rootCmd.AddCommand(topicsCmd)

	topicsCmd.Flags().BoolVar(&topicsJSON, "json", false, "Output as JSON")
	topicsCmd.Flags().BoolVar(&topicsToon, "toon", false, "Output in LLM-friendly toon format")
}

func runTopicsCmd(cmd *cobra.Command, args []string) error {
	topics, err := catalog.Load(config.GetCatalogPath())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if topicsJSON {
		return printJSON(w, topics)
	}
	if topicsToon {
		return printToon(w, struct {
			Topics []models.Topic `json:"topics"`
		}{topics})
	}

	source := config.GetCatalogPath()
	if source == "" {
		source = "built-in"
	}
	fmt.Fprintf(w, "Catalog: %s (%d topics)\n\n", source, len(topics))
	for _, t := range topics {
		fmt.Fprintf(w, "  %s  [%s]\n", t.Name, t.Importance)
		fmt.Fprintf(w, "    ID: %s\n", t.ID)
		for _, q := range t.Queries {
			fmt.Fprintf(w, "    - %s\n", q)
		}
		fmt.Fprintln(w)
	}
	return nil
}
