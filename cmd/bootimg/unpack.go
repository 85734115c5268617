package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	bootimg "github.com/badmaneers/bootmod"
	"github.com/badmaneers/bootmod/internal/project"
)

func newUnpackCmd() *cobra.Command {
	var mode string
	var slots string
	var raw bool
	var flip bool

	cmd := &cobra.Command{
		Use:   "unpack <input> <output_dir>",
		Short: "Unpack a container into a project directory of PNGs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, outDir := args[0], args[1]

			opts := project.UnpackOptions{Raw: raw}
			if slots != "" {
				parsed, err := parseSlotList(slots)
				if err != nil {
					return err
				}
				opts.Slots = parsed
			}
			if mode != "" {
				m, ok := bootimg.ModeByName(mode)
				if !ok {
					return fmt.Errorf("unknown --mode %q", mode)
				}
				opts.Mode = m
				opts.HasMode = true
			}

			if err := project.UnpackToProjectWithOptions(input, outDir, opts); err != nil {
				return err
			}

			// --flip is parsed but never applied, per spec.md §9: the
			// original tool plumbs it through without acting on it, and
			// this module preserves that rather than inventing a meaning.
			if flip {
				log.Debug("--flip is accepted for compatibility and has no effect")
			}

			log.Infof("unpacked %s into %s", input, outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "MTK pixel mode override (e.g. bgrale)")
	cmd.Flags().StringVar(&slots, "slots", "", "comma-separated 1-based slot list (MTK only)")
	cmd.Flags().BoolVar(&raw, "raw", false, "export raw compressed blobs instead of PNGs")
	cmd.Flags().BoolVar(&flip, "flip", false, "")
	return cmd
}

// parseSlotList parses a comma-separated list of 1-based slot indices, as
// specified for unpack's --slots flag in spec.md §6.
func parseSlotList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid --slots entry %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
