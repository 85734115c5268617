package project

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	bootimg "github.com/badmaneers/bootmod"
)

var mtkFileRE = regexp.MustCompile(`^logo_(\d+)_(\d+)x(\d+)\.png$`)
var oppoFileRE = regexp.MustCompile(`^image_(\d+)\.png$`)

func mtkFileName(index, w, h int) string {
	return fmt.Sprintf("logo_%d_%dx%d.png", index, w, h)
}

func oppoFileName(index int) string {
	return fmt.Sprintf("image_%d.png", index)
}

// writeRawSlot writes slot's untouched Compressed bytes, used by
// UnpackToProjectWithOptions's Raw option to export blobs instead of
// decoded PNGs.
func writeRawSlot(imagesDir string, format bootimg.Format, slot *bootimg.ImageSlot) error {
	var name string
	if format == bootimg.FormatMTK {
		name = fmt.Sprintf("logo_%d_raw.z", slot.Index)
	} else {
		name = fmt.Sprintf("image_%d_raw.gz", slot.Index)
	}
	return os.WriteFile(filepath.Join(imagesDir, name), slot.Compressed, 0o644)
}

// UnpackOptions narrows which slots UnpackToProjectWithOptions exports and
// how, per spec.md §6's unpack CLI flags.
type UnpackOptions struct {
	// Slots restricts export to these 1-based MTK slot indices. Empty
	// means every slot. Ignored for OPPO containers (OPPO slot numbering
	// is fixed 0-based per the container's own metadata table).
	Slots []int
	// Raw exports each slot's untouched compressed bytes instead of a
	// decoded PNG: "logo_{N}_raw.z" for MTK, "image_{N}_raw.gz" for OPPO.
	Raw bool
	// Mode overrides the MTK dimension-inferencer's chosen ColorMode when
	// decoding to PNG. Zero value means use the slot's inferred native
	// mode. Ignored when Raw is set, and for OPPO containers (which have
	// no ColorMode, only a BMP bit depth).
	Mode    bootimg.ColorMode
	HasMode bool
}

// UnpackToProject loads containerPath and writes its images, one PNG per
// slot, plus a .bootmod descriptor and README, into dir. dir must be
// empty or not exist yet; any existing entry in it is an error.
func UnpackToProject(containerPath, dir string) error {
	return UnpackToProjectWithOptions(containerPath, dir, UnpackOptions{})
}

// UnpackToProjectWithOptions is UnpackToProject with the CLI's --slots,
// --raw, and --mode modifiers applied. A project unpacked with a Slots
// filter or Raw set is not necessarily reopenable with OpenProject (it may
// be missing slots OpenProject's MTK path expects) — it exists for
// inspection/export, not only for round-trip editing.
func UnpackToProjectWithOptions(containerPath, dir string, opts UnpackOptions) error {
	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return invalid("%s is not empty", dir)
	} else if err != nil && !os.IsNotExist(err) {
		return invalid("reading %s: %v", dir, err)
	}

	img, err := bootimg.LoadFile(containerPath)
	if err != nil {
		return err
	}

	imagesDir := filepath.Join(dir, ImagesDirName)
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return invalid("creating %s: %v", imagesDir, err)
	}

	slotFilter := map[int]bool(nil)
	if len(opts.Slots) > 0 && img.Format == bootimg.FormatMTK {
		slotFilter = make(map[int]bool, len(opts.Slots))
		for _, s := range opts.Slots {
			slotFilter[s] = true
		}
	}

	for _, slot := range img.Images {
		if slotFilter != nil && !slotFilter[slot.Index] {
			continue
		}

		if opts.Raw {
			if err := writeRawSlot(imagesDir, img.Format, slot); err != nil {
				return err
			}
			continue
		}

		var rgba []byte
		var w, h int
		if opts.HasMode && img.Format == bootimg.FormatMTK {
			rgba, w, h, err = img.GetImageMode(slot.Index, opts.Mode)
		} else {
			rgba, w, h, err = img.GetImage(slot.Index)
		}
		if err != nil {
			return fmt.Errorf("project: unpacking slot %d: %w", slot.Index, err)
		}
		var name string
		if img.Format == bootimg.FormatMTK {
			name = mtkFileName(slot.Index, w, h)
		} else {
			name = oppoFileName(slot.Index)
		}
		if err := EncodePNGFile(filepath.Join(imagesDir, name), rgba, w, h); err != nil {
			return err
		}
	}

	formatName := "mtk"
	if img.Format == bootimg.FormatOPPO {
		formatName = "snapdragon"
	}
	originalFile := filepath.Base(containerPath)
	if img.Format == bootimg.FormatOPPO {
		abs, err := filepath.Abs(containerPath)
		if err == nil {
			originalFile = abs
		}
	}

	desc := &Descriptor{
		Version:      DescriptorVersion,
		Type:         "bootmod-project",
		Format:       formatName,
		Created:      time.Now().UTC().Format(time.RFC3339),
		Tool:         Tool,
		LogoCount:    len(img.Images),
		OriginalFile: originalFile,
	}
	if err := writeDescriptor(dir, desc); err != nil {
		return invalid("writing descriptor: %v", err)
	}
	return writeReadme(dir)
}

// OpenProject rebuilds a *bootimg.BootImage from a project directory.
// For an MTK project, every images/logo_*.png is recompressed from
// scratch with fresh MTK header defaults. For an OPPO project, the
// original splash.img is located (the descriptor's absolute path, then
// the project directory, then its parent) and loaded to recover the
// header/metadata fields not reproducible from PNGs alone; each
// images/image_{i}.png is then applied as a replace against that loaded
// BootImage.
func OpenProject(dir string) (*bootimg.BootImage, error) {
	desc, err := readDescriptor(dir)
	if err != nil {
		return nil, err
	}
	imagesDir := filepath.Join(dir, ImagesDirName)
	if fi, err := os.Stat(imagesDir); err != nil || !fi.IsDir() {
		return nil, invalid("%s missing or not a directory", imagesDir)
	}

	switch desc.Format {
	case "mtk":
		return openMTKProject(imagesDir)
	case "snapdragon":
		return openOPPOProject(dir, imagesDir, desc)
	default:
		return nil, invalid("unknown project format %q", desc.Format)
	}
}

type mtkFile struct {
	index, w, h int
	path        string
}

func listMTKFiles(imagesDir string) ([]mtkFile, error) {
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return nil, invalid("reading %s: %v", imagesDir, err)
	}
	var files []mtkFile
	for _, e := range entries {
		m := mtkFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		w, _ := strconv.Atoi(m[2])
		h, _ := strconv.Atoi(m[3])
		files = append(files, mtkFile{index: idx, w: w, h: h, path: filepath.Join(imagesDir, e.Name())})
	}
	if len(files) == 0 {
		return nil, invalid("no logo_*.png files found in %s", imagesDir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })
	return files, nil
}

func openMTKProject(imagesDir string) (*bootimg.BootImage, error) {
	files, err := listMTKFiles(imagesDir)
	if err != nil {
		return nil, err
	}

	blank, err := bootimg.NewEmptyMTK()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		rgba, w, h, err := DecodePNGFile(f.path)
		if err != nil {
			return nil, err
		}
		if w != f.w || h != f.h {
			return nil, invalid("%s: PNG is %dx%d, filename says %dx%d", f.path, w, h, f.w, f.h)
		}
		if err := blank.AddMTKSlot(f.index, rgba, w, h); err != nil {
			return nil, err
		}
	}
	return blank, nil
}

func openOPPOProject(dir, imagesDir string, desc *Descriptor) (*bootimg.BootImage, error) {
	originalPath, err := locateOPPOOriginal(dir, desc.OriginalFile)
	if err != nil {
		return nil, err
	}
	img, err := bootimg.LoadFile(originalPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return nil, invalid("reading %s: %v", imagesDir, err)
	}
	for _, e := range entries {
		m := oppoFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		// Decode the stored slot first so its native BMP bit depth and
		// palette are known before ReplaceImage re-encodes it.
		if _, _, _, err := img.GetImage(idx); err != nil {
			return nil, fmt.Errorf("project: decoding slot %d: %w", idx, err)
		}
		rgba, w, h, err := DecodePNGFile(filepath.Join(imagesDir, e.Name()))
		if err != nil {
			return nil, err
		}
		if err := img.ReplaceImage(idx, rgba, w, h); err != nil {
			return nil, fmt.Errorf("project: applying %s: %w", e.Name(), err)
		}
	}
	return img, nil
}

// locateOPPOOriginal checks the descriptor's stored path, then the
// project directory, then the project's parent directory, per spec.md
// §4.H.
func locateOPPOOriginal(dir, originalFile string) (string, error) {
	candidates := []string{
		originalFile,
		filepath.Join(dir, filepath.Base(originalFile)),
		filepath.Join(filepath.Dir(dir), filepath.Base(originalFile)),
	}
	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}
	return "", invalid("could not locate original splash.img (%s) for project %s", originalFile, dir)
}

// ReplaceImage applies a project-mode replace: the PNG at pngPath must
// match slot index's currently recorded dimensions. On success, img's
// in-memory slot is re-encoded at its native format via the core
// replace pipeline, and the project's own copy of the PNG is updated to
// match.
func ReplaceImage(img *bootimg.BootImage, dir string, index int, pngPath string) error {
	rgba, w, h, err := DecodePNGFile(pngPath)
	if err != nil {
		return err
	}
	if err := img.ReplaceImage(index, rgba, w, h); err != nil {
		return err
	}

	imagesDir := filepath.Join(dir, ImagesDirName)
	var name string
	if img.Format == bootimg.FormatMTK {
		name = mtkFileName(index, w, h)
	} else {
		name = oppoFileName(index)
	}
	return EncodePNGFile(filepath.Join(imagesDir, name), rgba, w, h)
}

// RescanProjectImages reloads the entire image list from dir's images/
// folder (MTK only), replacing in-memory state wholesale. It does not
// preserve any edit history.
func RescanProjectImages(dir string) (*bootimg.BootImage, error) {
	desc, err := readDescriptor(dir)
	if err != nil {
		return nil, err
	}
	if desc.Format != "mtk" {
		return nil, invalid("rescan is only supported for mtk projects, this project is %q", desc.Format)
	}
	return openMTKProject(filepath.Join(dir, ImagesDirName))
}
