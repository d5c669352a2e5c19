package sweep

import (
	"math"
	"sort"
)

// Knee finds the block size where total bandwidth stops scaling, using the
// Kneedle method: the point furthest above the diagonal once log2(block size)
// and bandwidth are normalized to [0, 1]. ok is false with fewer than three
// results or when no point lies above the diagonal (a flat or linear curve).
func Knee(results []BlockSizeResult) (BlockSizeResult, bool) {
	if len(results) < 3 {
		return BlockSizeResult{}, false
	}

	pts := append([]BlockSizeResult(nil), results...)
	sort.Slice(pts, func(i, j int) bool {
		return pts[i].BlockSize < pts[j].BlockSize
	})

	x := func(r BlockSizeResult) float64 { return math.Log2(float64(r.BlockSize)) }
	minX, maxX := x(pts[0]), x(pts[len(pts)-1])
	minY, maxY := pts[0].TotalBandwidth, pts[0].TotalBandwidth
	for _, p := range pts {
		minY = math.Min(minY, p.TotalBandwidth)
		maxY = math.Max(maxY, p.TotalBandwidth)
	}
	if maxX == minX || maxY == minY {
		return BlockSizeResult{}, false
	}

	var knee BlockSizeResult
	maxDist := 0.0
	for _, p := range pts {
		xNorm := (x(p) - minX) / (maxX - minX)
		yNorm := (p.TotalBandwidth - minY) / (maxY - minY)
		if dist := yNorm - xNorm; dist > maxDist {
			maxDist = dist
			knee = p
		}
	}
	return knee, maxDist > 0
}
