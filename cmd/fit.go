package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robalobadob/hiddenpicture/internal/game"
	"github.com/robalobadob/hiddenpicture/internal/raster"
)

var fitCmd = &cobra.Command{
	Use:   "fit <image>",
	Short: "Print where an image would be drawn on the canvas",
	Long: `Decodes the image and prints its letterboxed draw region on the configured
canvas, along with the area points may be placed in.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		img, format, err := raster.Decode(f)
		if err != nil {
			return err
		}
		b := img.Bounds()
		region := game.FitRegion(float64(b.Dx()), float64(b.Dy()),
			float64(cfg.Canvas.Width), float64(cfg.Canvas.Height))

		out := map[string]any{
			"format": format,
			"image":  game.Size{Width: float64(b.Dx()), Height: float64(b.Dy())},
			"canvas": game.Size{Width: float64(cfg.Canvas.Width), Height: float64(cfg.Canvas.Height)},
			"region": region,
		}
		margin := cfg.Game.HitRadius + cfg.Game.Padding
		if safe, err := game.SafeArea(region, margin); err == nil {
			out["safeArea"] = safe
		} else {
			out["safeArea"] = nil
			out["warning"] = err.Error()
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fitCmd)
}
