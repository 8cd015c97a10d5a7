package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var calendarShow bool

// calendarCmd rebuilds the filtered earnings calendar.
var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Rebuild the filtered earnings calendar",
	Long: `Fetches the upcoming earnings calendar, applies the price,
volume and OTC filters, and writes the result to the data directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := buildApp()
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := a.RefreshCalendar(ctx); err != nil {
			return err
		}

		if !calendarShow {
			return nil
		}

		events, err := a.Calendar().Current(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tCOMPANY\tDATE\tTIMING\tMKT CAP\tPRICE\tVOLUME")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%.2f\t%d\n",
				e.Symbol, e.CompanyName, e.EarningsDate.Format("2006-01-02"),
				e.Timing, e.MarketCap, e.Price, e.Volume)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(calendarCmd)
	calendarCmd.Flags().BoolVar(&calendarShow, "show", false, "print the calendar after refreshing")
}
