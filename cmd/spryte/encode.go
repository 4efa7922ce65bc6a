package main

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixelloom/spryte/internal/logging"
	"github.com/pixelloom/spryte/raster"
	"github.com/pixelloom/spryte/spryte"
)

func newEncodeCmd(logFile *string, debug *bool) *cobra.Command {
	var quality int
	var collectStats bool

	cmd := &cobra.Command{
		Use:   "encode <input.png> <output.spryte>",
		Short: "Encode a PNG into a .spryte bitstream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logging.Options{LogFile: *logFile, Debug: *debug})

			img, err := loadImage(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}

			opts := spryte.Preset(quality)
			opts.CollectStats = collectStats

			start := time.Now()
			res, err := spryte.Encode(img, opts, nil, nil, log)
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			elapsed := time.Since(start)

			if err := os.WriteFile(args[1], res.Bytes, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", args[1], err)
			}

			fmt.Printf("%s -> %s (%d bytes, %s)\n", args[0], args[1], len(res.Bytes), elapsed)
			if res.Stats != nil {
				fmt.Printf("run_id=%s palette=%v chaos_levels=%d\n", res.Stats.RunID, res.Stats.PaletteUsed, res.Stats.ChaosLevels)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&quality, "quality", 80, "quality preset, 0-100")
	cmd.Flags().BoolVar(&collectStats, "stats", false, "collect and print EncodeStats")
	return cmd
}

func toGoImage(img *raster.Image) image.Image {
	out := image.NewNRGBA(image.Rect(0, 0, int(img.W), int(img.H)))
	for y := uint16(0); y < img.H; y++ {
		for x := uint16(0); x < img.W; x++ {
			p := img.At(x, y)
			out.SetNRGBA(int(x), int(y), color.NRGBA{R: p.R, G: p.G, B: p.B, A: p.A})
		}
	}
	return out
}

func loadImage(path string) (*raster.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	img, err := raster.New(uint16(w), uint16(h))
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bch, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			img.Set(uint16(x), uint16(y), raster.Pixel{
				R: byte(r >> 8), G: byte(g >> 8), B: byte(bch >> 8), A: byte(a >> 8),
			})
		}
	}
	return img, nil
}
