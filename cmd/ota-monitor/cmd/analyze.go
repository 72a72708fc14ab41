package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Evaluate all listings and print the would-be alerts without persisting or delivering them",
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	eng := buildEngine(cfg, s)
	alerts, err := eng.RunAnalysis(ctx)
	if err != nil {
		return fmt.Errorf("running analysis: %w", err)
	}

	if len(alerts) == 0 {
		fmt.Println("All listings healthy.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LISTING\tSCORE\tSEVERITY\tISSUES")
	for i := range alerts {
		a := &alerts[i]
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\n", a.ListingID, a.SeverityScore, a.SeverityLevel, len(a.Issues))
		for _, issue := range a.Issues {
			fmt.Fprintf(w, "\t\t\t%s\n", issue)
		}
	}
	return w.Flush()
}
