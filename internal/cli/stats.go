package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ratehive/ratehive/internal/daemon"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats <user>",
	Short: "Show a user's aggregate stats and unlocked badges",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	userID := args[0]

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	stats, err := d.Coordinator.Stats(cmd.Context(), userID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total points\t%d\n", stats.TotalPoints)
	fmt.Fprintf(w, "Total actions\t%d\n", stats.TotalActions)
	fmt.Fprintf(w, "Ratings\t%d\n", stats.Ratings)
	fmt.Fprintf(w, "Unique brands rated\t%d\n", stats.UniqueRatings)
	fmt.Fprintf(w, "Reviews\t%d\n", stats.Reviews)
	fmt.Fprintf(w, "Brands added\t%d\n", stats.BrandAdds)
	fmt.Fprintf(w, "Brand updates\t%d\n", stats.BrandUpdates)
	fmt.Fprintf(w, "Help topics resolved\t%d\n", stats.HelpResolves)
	fmt.Fprintf(w, "Comments\t%d\n", stats.Comments)
	fmt.Fprintf(w, "Actions this week\t%d\n", stats.WeeklyActions)
	if err := w.Flush(); err != nil {
		return err
	}

	unlocked, err := d.Coordinator.UnlockedBadges(cmd.Context(), userID)
	if err != nil {
		return err
	}
	if len(unlocked) == 0 {
		fmt.Println("\nNo badges unlocked yet.")
		return nil
	}

	fmt.Println("\nBadges:")
	for _, ub := range unlocked {
		fmt.Printf("  %s (unlocked %s)\n", ub.BadgeID, ub.UnlockedAt.Format("2006-01-02"))
	}
	return nil
}
