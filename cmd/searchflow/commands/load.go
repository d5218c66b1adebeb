package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func loadCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Print every character followed by every planet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := app.newSession(cmd.Context())
			defer session.Teardown()

			result := <-session.TriggerCombinedLoad(cmd.Context())
			if result.Err != nil {
				return result.Err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result.Records)
			}
			printRecords(cmd, result.Records)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}
