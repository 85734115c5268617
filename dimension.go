package bootimg

// Dimension is a candidate (width, height) pair returned by the MTK
// dimension inferencer.
type Dimension struct {
	Width  int
	Height int
}

// curatedResolutions lists known phone screen resolutions in portrait
// orientation, checked in this order before falling back to factor-pair
// enumeration.
var curatedResolutions = []Dimension{
	{720, 1280}, {720, 1520}, {720, 1560}, {720, 1600},
	{1080, 1920}, {1080, 2160}, {1080, 2280}, {1080, 2340}, {1080, 2400},
	{1440, 2560}, {1440, 2880}, {1440, 2960}, {1440, 3040}, {1440, 3200},
	{480, 800}, {480, 854}, {540, 960}, {600, 1024}, {640, 1136}, {750, 1334},
}

// curatedIcons lists known small-icon sizes, checked alongside the screen
// resolutions above.
var curatedIcons = []Dimension{
	{28, 28}, {36, 50}, {50, 36}, {30, 60}, {60, 30},
	{40, 45}, {45, 40}, {56, 14}, {14, 56}, {7, 112}, {112, 7},
}

// InferDimensions recovers plausible (width, height) pairs for a
// decompressed blob of n bytes under the given bytes-per-pixel, per
// spec.md §4.F: first the curated resolution/icon tables, in list order;
// if none match, every factor pair of n/bpp (both orientations), ranked
// by an aspect-ratio preference score. Returns nil if n is not a multiple
// of bpp.
func InferDimensions(n, bpp int) []Dimension {
	if bpp <= 0 || n%bpp != 0 {
		return nil
	}
	pixels := n / bpp

	var curated []Dimension
	for _, d := range curatedResolutions {
		if d.Width*d.Height == pixels {
			curated = append(curated, d)
		}
	}
	for _, d := range curatedIcons {
		if d.Width*d.Height == pixels {
			curated = append(curated, d)
		}
	}
	if len(curated) > 0 {
		return curated
	}

	return rankedFactorPairs(pixels)
}

// rankedFactorPairs enumerates all (w, h) with w*h == pixels, in both
// orientations, ranked by aspectScore descending (ties broken by smaller
// width first, for determinism).
func rankedFactorPairs(pixels int) []Dimension {
	if pixels <= 0 {
		return nil
	}
	var pairs []Dimension
	for w := 1; w*w <= pixels; w++ {
		if pixels%w != 0 {
			continue
		}
		h := pixels / w
		pairs = append(pairs, Dimension{Width: w, Height: h})
		if h != w {
			pairs = append(pairs, Dimension{Width: h, Height: w})
		}
	}

	scored := make([]Dimension, len(pairs))
	copy(scored, pairs)
	// Stable insertion sort by descending score, ascending width on ties;
	// the candidate lists here are small (low hundreds at most).
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && less(scored[j], scored[j-1]); j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	return scored
}

// less reports whether a should sort before b: higher aspectScore first,
// then smaller width.
func less(a, b Dimension) bool {
	sa, sb := aspectScore(a), aspectScore(b)
	if sa != sb {
		return sa > sb
	}
	return a.Width < b.Width
}

// aspectScore ranks h/w aspect ratios by the preference order from
// spec.md §4.F: [1.5, 2.5] (portrait phone-like) scores highest, then
// 1.0 (square), then (1.0, 1.5), then > 2.5, then landscape (r < 1).
func aspectScore(d Dimension) int {
	r := float64(d.Height) / float64(d.Width)
	switch {
	case r >= 1.5 && r <= 2.5:
		return 4
	case r == 1.0:
		return 3
	case r > 1.0 && r < 1.5:
		return 2
	case r > 2.5:
		return 1
	default: // r < 1, landscape
		return 0
	}
}
