package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/skyoffice-server/internal/config"
	"github.com/vovakirdan/skyoffice-server/internal/store/sqlite"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Summarize recorded analytics",
		Long: `Print event counts per type, the number of finished interactions and
the newest events.

Example:
  skyoffice events --limit 50`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvents(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of recent events to show")

	return cmd
}

func runEvents(cmd *cobra.Command, opts *EventsOptions) error {
	cfg, _, err := opts.load(cmd, config.Config{Database: config.DatabaseConfig{Path: opts.Database}})
	if err != nil {
		return err
	}
	st, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	counts, err := st.EventCounts(ctx)
	if err != nil {
		return err
	}
	interactions, err := st.CountInteractions(ctx)
	if err != nil {
		return err
	}
	recent, err := st.RecentEvents(ctx, opts.Limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tCOUNT")
	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%d\n", c.Type, c.Count)
	}
	fmt.Fprintf(w, "\ninteractions\t%d\n\n", interactions)

	fmt.Fprintln(w, "TIME\tUSER\tSESSION\tTYPE\tCATEGORY\tMETADATA")
	for _, ev := range recent {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.Format("2006-01-02 15:04:05"), ev.UserID, ev.SessionID, ev.Type, ev.Category, ev.Metadata)
	}
	return w.Flush()
}
