// File: cmd/tables.go
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var tablesLimit int

// tablesCmd is a thin pass-through over the backend's table
// introspection endpoints; rows are rendered verbatim.
var tablesCmd = &cobra.Command{
	Use:   "tables [name]",
	Short: "Inspect backend tables.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			names, err := comps.API.Tables(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		}

		limit := tablesLimit
		if limit <= 0 {
			limit = comps.Config.Backend.AdminLimit
		}
		dump, err := comps.API.Table(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()
		for _, row := range dump.Rows {
			encoded, err := json.Marshal(row)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "%s\n", encoded)
		}
		return nil
	},
}

func init() {
	tablesCmd.Flags().IntVar(&tablesLimit, "limit", 0, "max rows to fetch (default from config)")
}
