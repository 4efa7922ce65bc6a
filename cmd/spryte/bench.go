package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xfmoulet/qoi"

	"github.com/pixelloom/spryte/internal/logging"
	"github.com/pixelloom/spryte/spryte"
)

// newBenchCmd encodes the same input with spryte and with QOI and prints
// a side-by-side size comparison, following the pack's own
// TestBenchmarkSummary pattern.
func newBenchCmd(logFile *string, debug *bool) *cobra.Command {
	var quality int

	cmd := &cobra.Command{
		Use:   "bench <input.png>",
		Short: "Compare spryte's output size against QOI on the same image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logging.Options{LogFile: *logFile, Debug: *debug})

			img, err := loadImage(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}

			res, err := spryte.Encode(img, spryte.Preset(quality), nil, nil, log)
			if err != nil {
				return fmt.Errorf("spryte encode: %w", err)
			}

			goImg := toGoImage(img)
			var qoiBuf bytes.Buffer
			if err := qoi.Encode(&qoiBuf, goImg); err != nil {
				return fmt.Errorf("qoi encode: %w", err)
			}

			fmt.Printf("%s: spryte=%d bytes, qoi=%d bytes, ratio=%.3f\n",
				args[0], len(res.Bytes), qoiBuf.Len(), float64(len(res.Bytes))/float64(qoiBuf.Len()))
			return nil
		},
	}
	cmd.Flags().IntVar(&quality, "quality", 80, "quality preset, 0-100")
	return cmd
}
