package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	bootimg "github.com/badmaneers/bootmod"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <input>",
		Short: "Print a container's header summary and per-slot sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := bootimg.LoadFile(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("format: %s\n", img.Format)
			fmt.Printf("slots:  %d\n", len(img.Images))
			for _, slot := range img.Images {
				decodable := "opaque"
				if _, _, _, err := img.GetImage(slot.Index); err == nil {
					decodable = "decodable"
				}
				dims := "unknown"
				if slot.Width > 0 && slot.Height > 0 {
					dims = fmt.Sprintf("%dx%d", slot.Width, slot.Height)
				}
				fmt.Printf("  slot %-3d  %-10s  %-10s  %s\n",
					slot.Index, humanize.Bytes(uint64(len(slot.Compressed))), dims, decodable)
			}
			return nil
		},
	}
}
