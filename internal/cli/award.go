package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ratehive/ratehive/internal/daemon"
	"github.com/ratehive/ratehive/internal/domain"
)

func init() {
	rootCmd.AddCommand(awardCmd)
}

var awardCmd = &cobra.Command{
	Use:   "award <user> <action> [reference]",
	Short: "Record a point-earning action for a user",
	Long: `Record an action and print the outcome. Actions with a reference
(rating, review) are idempotent: resubmitting the same triple is
reported as a duplicate and awards nothing.

Actions: rating, review, brand_add, brand_update, help_resolve, comment.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runAward,
}

func runAward(cmd *cobra.Command, args []string) error {
	userID, action := args[0], args[1]
	var reference string
	if len(args) == 3 {
		reference = args[2]
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Coordinator.Award(cmd.Context(), userID, domain.ActionType(action), reference)
	if err != nil {
		return err
	}

	if !res.Accepted {
		fmt.Printf("Duplicate: %s already counted for %s (total %d points)\n",
			action, userID, res.NewTotalPoints)
		return nil
	}

	fmt.Printf("Awarded %s to %s (total %d points)\n", action, userID, res.NewTotalPoints)
	for _, b := range res.NewlyUnlocked {
		fmt.Printf("  Badge unlocked: %s\n", b.Name)
	}
	return nil
}
