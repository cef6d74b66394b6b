package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robalobadob/hiddenpicture/internal/game"
	"github.com/robalobadob/hiddenpicture/internal/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <player>",
	Short: "Show the saved game for a player",
	Long: `Loads the saved game for a player key (e.g. "user:<id>" or "anon:<cookie>")
from the configured store and prints a summary of its points.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		key := store.Key(args[0])
		rec, err := b.store.Load(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no saved game under %s", key)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "key:       %s\n", key)
		fmt.Fprintf(out, "snapshot:  %d bytes\n", len(rec.ImageSnapshot))
		if rec.DrawRegion != nil {
			r := rec.DrawRegion
			fmt.Fprintf(out, "region:    x=%.1f y=%.1f w=%.1f h=%.1f\n", r.X, r.Y, r.Width, r.Height)
		} else {
			fmt.Fprintln(out, "region:    none (refit on restore)")
		}
		fmt.Fprintf(out, "points:    %d (%d remaining)\n\n", len(rec.Points), game.Remaining(rec.Points))

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tID\tX\tY\tFOUND")
		for i, p := range rec.Points {
			fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.1f\t%v\n", i+1, p.ID, p.X, p.Y, p.Found)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
