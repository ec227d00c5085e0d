package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-clock/internal/config"
	"github.com/kozaktomas/face-clock/internal/identitystore"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Read the attendance event log",
	Long: `Read one page of the attendance event log from the identity store.

Examples:
  # Today's events
  face-clock events --date 2026-08-28

  # Search by worker name, accent-insensitive
  face-clock events --search novak

  # Page through the full log
  face-clock events --limit 20 --offset 40`,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().String("date", "", "Filter by day (YYYY-MM-DD)")
	eventsCmd.Flags().String("search", "", "Free-text filter over name, ID and message")
	eventsCmd.Flags().Int("limit", 0, "Page size (0 = server default)")
	eventsCmd.Flags().Int("offset", 0, "Page offset")
	eventsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	client, err := newStoreClient(cfg)
	if err != nil {
		return err
	}

	page, err := client.Events(cmd.Context(), identitystore.EventQuery{
		Date:   mustGetString(cmd, "date"),
		Search: mustGetString(cmd, "search"),
		Limit:  mustGetInt(cmd, "limit"),
		Offset: mustGetInt(cmd, "offset"),
	})
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(page)
	}

	printEventPage(page)
	return nil
}

func printEventPage(page *identitystore.EventPage) {
	if page.Total == 0 {
		fmt.Println("No events found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tMODE\tWORKER\tRESULT\tMESSAGE")
	fmt.Fprintln(w, "----\t----\t----\t------\t------\t-------")

	for i := range page.Results {
		e := &page.Results[i]
		worker := e.EmployeeID
		if e.EmployeeName != "" {
			worker = fmt.Sprintf("%s (%s)", e.EmployeeID, e.EmployeeName)
		}
		if worker == "" {
			worker = "-"
		}
		result := "denied"
		if e.Recognized {
			result = "ok"
		}
		if e.Confidence != nil {
			result = fmt.Sprintf("%s %.2f", result, *e.Confidence)
		}
		mode := string(e.Mode)
		if mode == "" {
			mode = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.EventTime.Format("2006-01-02 15:04:05"), e.EventType, mode, worker, result, e.Message)
	}
	w.Flush()

	fmt.Printf("\nShowing %d of %d events (offset %d)\n", page.Count, page.Total, page.Offset)
}
