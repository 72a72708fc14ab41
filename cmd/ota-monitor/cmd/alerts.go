package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	domain "github.com/donaldgifford/ota-listing-monitor/pkg/types"
)

var (
	alertsResolved    bool
	alertsMinSeverity string
	alertsLimit       int
	alertsNotes       string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List alerts from the ledger",
	RunE:  runAlerts,
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Mark an alert as resolved",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsResolve,
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsResolved, "resolved", false, "show resolved alerts instead of open ones")
	alertsCmd.Flags().StringVar(&alertsMinSeverity, "min-severity", "LOW", "minimum severity (CRITICAL, HIGH, MEDIUM, LOW)")
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 50, "maximum alerts to show")

	alertsResolveCmd.Flags().StringVar(&alertsNotes, "notes", "", "resolution notes")

	alertsCmd.AddCommand(alertsResolveCmd)
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	minSev := domain.Severity(strings.ToUpper(alertsMinSeverity))
	if !minSev.Valid() {
		return fmt.Errorf("unknown severity %q", alertsMinSeverity)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	alerts, err := s.ListAlerts(ctx, alertsResolved, minSev, alertsLimit)
	if err != nil {
		return fmt.Errorf("listing alerts: %w", err)
	}

	if len(alerts) == 0 {
		fmt.Println("No alerts found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLISTING\tDATE\tSCORE\tSEVERITY\tISSUES")
	for i := range alerts {
		a := &alerts[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			a.ID,
			a.ListingID,
			a.AlertDate.Format(time.DateOnly),
			a.SeverityScore,
			a.SeverityLevel,
			strings.Join(a.Issues, "; "),
		)
	}
	return w.Flush()
}

func runAlertsResolve(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ResolveAlert(ctx, args[0], alertsNotes); err != nil {
		return fmt.Errorf("resolving alert %s: %w", args[0], err)
	}

	fmt.Printf("Alert %s resolved.\n", args[0])
	return nil
}
