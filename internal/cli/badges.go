package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ratehive/ratehive/internal/daemon"
	"github.com/ratehive/ratehive/internal/domain"
)

func init() {
	badgesAddCmd.Flags().StringVar(&badgeID, "id", "", "Badge id (generated when omitted)")
	badgesAddCmd.Flags().StringVar(&badgeDesc, "description", "", "Badge description")
	badgesAddCmd.Flags().IntVar(&badgeSort, "sort", 0, "Sort order in listings")

	badgesCmd.AddCommand(badgesListCmd)
	badgesCmd.AddCommand(badgesAddCmd)
	badgesCmd.AddCommand(badgesRmCmd)
	rootCmd.AddCommand(badgesCmd)
}

var (
	badgeID   string
	badgeDesc string
	badgeSort int
)

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Manage the badge catalog",
}

var badgesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List catalog badges",
	RunE:    runBadgesList,
}

var badgesAddCmd = &cobra.Command{
	Use:   "add <name> <kind> <threshold>",
	Short: "Add a badge to the catalog",
	Long: `Add a badge whose condition is <kind> >= <threshold>.

Kinds: points, actions, reviews, ratings, unique_ratings, weekly_actions.`,
	Args: cobra.ExactArgs(3),
	RunE: runBadgesAdd,
}

var badgesRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a badge from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runBadgesRm,
}

func runBadgesList(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	badges, err := d.Store.Badges(cmd.Context())
	if err != nil {
		return err
	}

	if len(badges) == 0 {
		fmt.Println("No badges defined. Run 'ratehive badges add' to create one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCONDITION\tTHRESHOLD")
	for _, b := range badges {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", b.ID, b.Name, b.Condition.Kind, b.Condition.Threshold)
	}
	return w.Flush()
}

func runBadgesAdd(cmd *cobra.Command, args []string) error {
	name, kind := args[0], args[1]
	var threshold int64
	if _, err := fmt.Sscanf(args[2], "%d", &threshold); err != nil {
		return fmt.Errorf("threshold %q: %w", args[2], err)
	}

	b := domain.Badge{
		ID:          badgeID,
		Name:        name,
		Description: badgeDesc,
		SortOrder:   badgeSort,
		Condition: domain.Condition{
			Kind:      domain.ConditionKind(kind),
			Threshold: threshold,
		},
	}
	if err := b.Condition.Validate(); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Store.CreateBadge(cmd.Context(), b); err != nil {
		return err
	}
	fmt.Printf("Created badge %s (%s >= %d)\n", b.ID, b.Condition.Kind, b.Condition.Threshold)
	return nil
}

func runBadgesRm(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Store.DeleteBadge(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted badge %s\n", args[0])
	return nil
}
