package geo

// BBox is a geographic bounding box.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// NewBBox returns an empty bounding box ready for Extend.
func NewBBox() BBox {
	return BBox{MinLat: 91, MinLon: 181, MaxLat: -91, MaxLon: -181}
}

// Extend grows the box to include the given point.
func (b *BBox) Extend(lat, lon float64) {
	if lat < b.MinLat {
		b.MinLat = lat
	}
	if lat > b.MaxLat {
		b.MaxLat = lat
	}
	if lon < b.MinLon {
		b.MinLon = lon
	}
	if lon > b.MaxLon {
		b.MaxLon = lon
	}
}

// Empty reports whether the box has never been extended.
func (b BBox) Empty() bool {
	return b.MinLat > b.MaxLat || b.MinLon > b.MaxLon
}

// Grid partitions a bounding box into an N×N lattice of zones. Zone keys
// are row*N+col, row 0 at MinLat.
type Grid struct {
	box BBox
	n   int
}

// NewGrid builds an N×N grid over the given box. N must be at least 1.
func NewGrid(box BBox, n int) Grid {
	if n < 1 {
		n = 1
	}
	return Grid{box: box, n: n}
}

// Size returns the grid dimension N.
func (g Grid) Size() int {
	return g.n
}

// Zones returns the total number of zones (N²).
func (g Grid) Zones() int {
	return g.n * g.n
}

// ZoneKey maps a point to its zone. Points outside the box clamp to the
// nearest edge zone, so every candidate always lands in a valid zone.
func (g Grid) ZoneKey(lat, lon float64) int {
	row := g.index(lat, g.box.MinLat, g.box.MaxLat)
	col := g.index(lon, g.box.MinLon, g.box.MaxLon)
	return row*g.n + col
}

func (g Grid) index(v, lo, hi float64) int {
	if hi <= lo {
		return 0
	}
	i := int(float64(g.n) * (v - lo) / (hi - lo))
	if i < 0 {
		return 0
	}
	if i >= g.n {
		return g.n - 1
	}
	return i
}

// Neighbors returns the zone keys of the up-to-8 zones adjacent to the
// given zone.
func (g Grid) Neighbors(zone int) []int {
	row, col := zone/g.n, zone%g.n
	out := make([]int, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r, c := row+dr, col+dc
			if r < 0 || r >= g.n || c < 0 || c >= g.n {
				continue
			}
			out = append(out, r*g.n+c)
		}
	}
	return out
}

// Quadrant maps a point to one of four quadrants (0..3) of the box,
// numbered row-major from the south-west. Used by the depot tier's coarse
// placement strategy.
func (b BBox) Quadrant(lat, lon float64) int {
	q := 0
	if lat > (b.MinLat+b.MaxLat)/2 {
		q += 2
	}
	if lon > (b.MinLon+b.MaxLon)/2 {
		q++
	}
	return q
}
