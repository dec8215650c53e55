package ai

import "sort"

// DedupRadius is the minimum distance, in pixels, between the top-left corners
// of two accepted boxes.
const DedupRadius = 100

// DedupStrategy selects how overlapping template matches are collapsed.
type DedupStrategy string

const (
	// DedupScan keeps the first qualifying location in row-major order.
	DedupScan DedupStrategy = "scan"
	// DedupNMS keeps the best scoring location first (non-max suppression).
	DedupNMS DedupStrategy = "nms"
)

type candidate struct {
	X, Y  int
	Score float32
	order int
}

// scoreMap is a row-major template matching result.
type scoreMap struct {
	rows, cols int
	data       []float32
}

// collectCandidates returns, in row-major order, every location where at
// least one map reaches threshold. The score is the best across maps.
func collectCandidates(maps []scoreMap, threshold float64) []candidate {
	if len(maps) == 0 {
		return nil
	}
	rows, cols := maps[0].rows, maps[0].cols
	t := float32(threshold)

	var out []candidate
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			idx := y*cols + x
			hit := false
			var best float32
			for _, m := range maps {
				s := m.data[idx]
				if s >= t {
					if !hit || s > best {
						best = s
					}
					hit = true
				}
			}
			if hit {
				out = append(out, candidate{X: x, Y: y, Score: best, order: idx})
			}
		}
	}
	return out
}

// dedupCandidates collapses candidates closer than radius to an already kept one.
func dedupCandidates(cands []candidate, radius int, strategy DedupStrategy) []candidate {
	if strategy != DedupNMS {
		return greedyKeep(cands, radius)
	}

	ranked := make([]candidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	kept := greedyKeep(ranked, radius)
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].order < kept[j].order
	})
	return kept
}

func greedyKeep(cands []candidate, radius int) []candidate {
	var kept []candidate
	r2 := radius * radius
	for _, c := range cands {
		far := true
		for _, k := range kept {
			dx, dy := c.X-k.X, c.Y-k.Y
			if dx*dx+dy*dy <= r2 {
				far = false
				break
			}
		}
		if far {
			kept = append(kept, c)
		}
	}
	return kept
}
