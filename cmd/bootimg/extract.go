package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	bootimg "github.com/badmaneers/bootmod"
	"github.com/badmaneers/bootmod/internal/project"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <splash.img> <index> <output.png>",
		Short: "Extract one OPPO slot's image to a PNG",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[1], err)
			}

			img, err := bootimg.LoadFile(args[0])
			if err != nil {
				return err
			}
			if img.Format != bootimg.FormatOPPO {
				return fmt.Errorf("extract: %s is not an OPPO splash.img", args[0])
			}

			rgba, w, h, err := img.GetImage(index)
			if err != nil {
				return err
			}
			if err := project.EncodePNGFile(args[2], rgba, w, h); err != nil {
				return err
			}
			log.Infof("extracted slot %d (%dx%d) to %s", index, w, h, args[2])
			return nil
		},
	}
}
