package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	bootimg "github.com/badmaneers/bootmod"
	"github.com/badmaneers/bootmod/internal/project"
)

func newReplaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replace <splash.img> <index> <input.png> <output.img>",
		Short: "Replace one OPPO slot's image and write a new splash.img",
		Args:  cobra.ExactArgs(4),
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
				return fmt.Errorf("replace: %s is not an OPPO splash.img", args[0])
			}
			// Decode the slot once so its native BMP bit depth and
			// palette are known before ReplaceImage re-encodes it.
			if _, _, _, err := img.GetImage(index); err != nil {
				return err
			}

			rgba, w, h, err := project.DecodePNGFile(args[2])
			if err != nil {
				return err
			}
			if err := img.ReplaceImage(index, rgba, w, h); err != nil {
				return err
			}
			if err := img.SaveFile(args[3]); err != nil {
				return err
			}
			log.Infof("replaced slot %d and wrote %s", index, args[3])
			return nil
		},
	}
}
