package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var (
		delay  time.Duration
		wait   time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search TERM...",
		Short: "Feed terms through a search session and print each result set",
		Long: "Each TERM is fed to the session as if typed, DELAY apart. Result sets are\n" +
			"printed as they arrive until WAIT has passed after the last term.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session := app.newSession(ctx)
			defer session.Teardown()

			errs := make(chan error, 1)
			results := session.SearchResults(ctx, errs)
			fed := make(chan struct{})
			go func() {
				defer close(fed)
				for i, term := range args {
					if i > 0 && delay > 0 {
						select {
						case <-time.After(delay):
						case <-ctx.Done():
							return
						}
					}
					session.OnInputChanged(term)
				}
			}()

			var deadline <-chan time.Time
			for {
				select {
				case <-fed:
					fed = nil
					deadline = time.After(app.cfg.Search.Debounce + wait)
				case records, ok := <-results:
					if !ok {
						select {
						case err := <-errs:
							return err
						default:
							return ctx.Err()
						}
					}
					if asJSON {
						if err := json.NewEncoder(cmd.OutOrStdout()).Encode(records); err != nil {
							return err
						}
						continue
					}
					printRecords(cmd, records)
					fmt.Fprintln(cmd.OutOrStdout())
				case err := <-errs:
					return err
				case <-deadline:
					return nil
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between terms")
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "how long to keep printing results after the last term")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print result sets as JSON")
	return cmd
}
