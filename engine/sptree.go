package engine

import "math"

// maxTreeDepth bounds subdivision for points that differ only in the last
// few bits; deeper points share a leaf.
const maxTreeDepth = 64

// spTree is a 2^d-ary space-partitioning tree over the embedding, used for the
// Barnes-Hut approximation of the repulsive forces.
type spTree struct {
	y    []float64
	dims int
	root *spCell
}

type spCell struct {
	center []float64
	width  []float64 // half-widths
	com    []float64 // centre of mass
	count  int

	leaf   bool
	index  int // point held by a leaf, -1 when empty
	weight int // copies of that point
	child  []*spCell
}

func newSPTree(y []float64, n, dims int) *spTree {
	mean := make([]float64, dims)
	lo := make([]float64, dims)
	hi := make([]float64, dims)
	for k := range lo {
		lo[k] = math.Inf(1)
		hi[k] = math.Inf(-1)
	}
	for i := 0; i < n; i++ {
		for k := 0; k < dims; k++ {
			v := y[i*dims+k]
			mean[k] += v
			lo[k] = math.Min(lo[k], v)
			hi[k] = math.Max(hi[k], v)
		}
	}
	width := make([]float64, dims)
	for k := range mean {
		mean[k] /= float64(n)
		width[k] = math.Max(hi[k]-mean[k], mean[k]-lo[k]) + 1e-5
	}

	t := &spTree{y: y, dims: dims, root: newCell(mean, width)}
	for i := 0; i < n; i++ {
		t.insert(t.root, i, 1)
	}
	return t
}

func newCell(center, width []float64) *spCell {
	return &spCell{
		center: center,
		width:  width,
		com:    make([]float64, len(center)),
		leaf:   true,
		index:  -1,
	}
}

func (t *spTree) point(i int) []float64 {
	return t.y[i*t.dims : (i+1)*t.dims]
}

func (t *spTree) insert(c *spCell, idx, w int) {
	p := t.point(idx)
	for depth := 0; ; depth++ {
		c.count += w
		f := float64(w) / float64(c.count)
		for k := range c.com {
			c.com[k] += (p[k] - c.com[k]) * f
		}

		if c.leaf {
			if c.index < 0 {
				c.index, c.weight = idx, w
				return
			}
			if depth >= maxTreeDepth || samePoint(t.point(c.index), p) {
				c.weight += w
				return
			}
			t.subdivide(c)
		}
		c = t.childFor(c, p)
	}
}

// subdivide turns a leaf into an internal cell and pushes its point down.
func (t *spTree) subdivide(c *spCell) {
	idx, w := c.index, c.weight
	c.leaf = false
	c.index, c.weight = -1, 0
	c.child = make([]*spCell, 1<<t.dims)

	ch := t.childFor(c, t.point(idx))
	ch.count = w
	copy(ch.com, t.point(idx))
	ch.index, ch.weight = idx, w
}

// childFor returns the child quadrant containing p, creating it on demand.
func (t *spTree) childFor(c *spCell, p []float64) *spCell {
	q := 0
	for k := 0; k < t.dims; k++ {
		if p[k] > c.center[k] {
			q |= 1 << k
		}
	}
	if c.child[q] == nil {
		center := make([]float64, t.dims)
		width := make([]float64, t.dims)
		for k := 0; k < t.dims; k++ {
			width[k] = c.width[k] / 2
			if q&(1<<k) != 0 {
				center[k] = c.center[k] + width[k]
			} else {
				center[k] = c.center[k] - width[k]
			}
		}
		c.child[q] = newCell(center, width)
	}
	return c.child[q]
}

// repulsion accumulates the unnormalised repulsive force on point idx into
// neg and returns its contribution to the normalisation term sum(q).
func (t *spTree) repulsion(idx int, theta float64, neg []float64) float64 {
	return t.visit(t.root, t.point(idx), theta, neg)
}

func (t *spTree) visit(c *spCell, yi []float64, theta float64, neg []float64) float64 {
	if c == nil || c.count == 0 {
		return 0
	}
	if c.leaf && samePoint(t.point(c.index), yi) {
		// Copies of yi sit at distance zero: q = 1 and no force.
		return float64(c.weight - 1)
	}

	d := sqDist(yi, c.com)
	maxWidth := 0.0
	for _, w := range c.width {
		maxWidth = math.Max(maxWidth, w)
	}

	if c.leaf || maxWidth/math.Sqrt(d) < theta {
		q := 1 / (1 + d)
		mult := float64(c.count) * q
		sumQ := mult
		mult *= q
		for k := range neg {
			neg[k] += mult * (yi[k] - c.com[k])
		}
		return sumQ
	}

	sumQ := 0.0
	for _, ch := range c.child {
		sumQ += t.visit(ch, yi, theta, neg)
	}
	return sumQ
}

func samePoint(a, b []float64) bool {
	for k := range a {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}
