package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/pixelloom/spryte/internal/logging"
)

// newPackCmd bundles several already-encoded .spryte payloads into one
// zstd-compressed archive: a length-prefixed concatenation, then zstd over
// the whole thing. This is an outer container, not a substitute for the
// format's own Huffman residual coder.
func newPackCmd(logFile *string, debug *bool) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pack <input.spryte>...",
		Short: "Bundle several .spryte files into one zstd archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logging.Options{LogFile: *logFile, Debug: *debug})

			var raw []byte
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				var lenBuf [4]byte
				binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
				raw = append(raw, lenBuf[:]...)
				raw = append(raw, data...)
			}

			enc, err := zstd.NewWriter(nil)
			if err != nil {
				return fmt.Errorf("zstd writer: %w", err)
			}
			defer enc.Close()
			packed := enc.EncodeAll(raw, nil)

			if err := os.WriteFile(output, packed, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			log.Info("packed archive", "files", len(args), "raw_bytes", len(raw), "packed_bytes", len(packed))
			fmt.Printf("%d files -> %s (%d raw -> %d packed)\n", len(args), output, len(raw), len(packed))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "bundle.spryte.zst", "output archive path")
	return cmd
}
