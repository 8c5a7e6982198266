package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List enrolled labels",
	Long:  "List every enrolled label with its number of templates, in order of first enrollment.",
	Args:  cobra.NoArgs,
	RunE:  runTemplates,
}

func init() {
	rootCmd.AddCommand(templatesCmd)

	templatesCmd.Flags().Bool("json", false, "Output as JSON")
}

func runTemplates(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	labels := db.Labels()

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"store":  db.StoreName(),
			"dim":    db.Dim(),
			"total":  db.Len(),
			"labels": labels,
		})
	}

	if len(labels) == 0 {
		fmt.Printf("No templates in %s\n", db.StoreName())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tTEMPLATES")
	for _, l := range labels {
		fmt.Fprintf(w, "%s\t%d\n", l.Label, l.Templates)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d templates, %d labels, dimension %d (%s)\n", db.Len(), len(labels), db.Dim(), db.StoreName())
	return nil
}
