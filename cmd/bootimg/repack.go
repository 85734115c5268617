package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	bootimg "github.com/badmaneers/bootmod"
	"github.com/badmaneers/bootmod/internal/byteio"
)

// repackFileRE matches "logo_{NNN}_{mode}.png" or "logo_{NNN}_raw.z"
// input file names, per spec.md §6.
var repackFileRE = regexp.MustCompile(`^logo_(\d+)_(.+)\.(png|z)$`)

func newRepackCmd() *cobra.Command {
	var stripAlpha bool

	cmd := &cobra.Command{
		Use:   "repack <output> <file1> [file2...]",
		Short: "Rebuild an MTK container from a list of named blob/PNG files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := args[0]
			inputs := args[1:]

			img, err := bootimg.NewEmptyMTK()
			if err != nil {
				return err
			}

			for _, path := range inputs {
				if err := addRepackFile(img, path); err != nil {
					return err
				}
			}

			if stripAlpha {
				log.Debug("--strip-alpha is accepted for compatibility and has no effect")
			}

			data, err := img.Save()
			if err != nil {
				return fmt.Errorf("assembling %s: %w", output, err)
			}
			if err := byteio.StoreFile(output, data, 0o644); err != nil {
				return err
			}
			log.Infof("repacked %d slot(s) into %s", len(img.Images), output)
			return nil
		},
	}

	cmd.Flags().BoolVar(&stripAlpha, "strip-alpha", false, "")
	return cmd
}

func addRepackFile(img *bootimg.BootImage, path string) error {
	name := filepath.Base(path)
	m := repackFileRE.FindStringSubmatch(name)
	if m == nil {
		return fmt.Errorf("repack: %s does not match logo_{NNN}_{mode}.png or logo_{NNN}_raw.z", name)
	}
	index, _ := strconv.Atoi(m[1])
	suffix, ext := m[2], m[3]

	if ext == "z" {
		if !strings.EqualFold(suffix, "raw") {
			return fmt.Errorf("repack: %s: .z files must be named logo_{NNN}_raw.z", name)
		}
		compressed, err := byteio.LoadFile(path)
		if err != nil {
			return fmt.Errorf("repack: reading %s: %w", name, err)
		}
		return img.AddMTKRawSlot(index, compressed)
	}

	mode, ok := bootimg.ModeByName(suffix)
	if !ok {
		return fmt.Errorf("repack: %s: unknown pixel mode %q", name, suffix)
	}
	rgba, w, h, err := decodePNG(path)
	if err != nil {
		return fmt.Errorf("repack: %s: %w", name, err)
	}
	return img.AddMTKSlotMode(index, rgba, w, h, mode)
}

func decodePNG(path string) ([]byte, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()
	return decodePNGReader(f)
}
