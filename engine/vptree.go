package engine

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
)

// vpTree is a vantage-point tree over the rows of a row-major matrix, used
// for exact k-nearest-neighbour search in Euclidean distance.
type vpTree struct {
	data []float64
	dim  int
	root *vpNode
}

type vpNode struct {
	index     int
	threshold float64
	inside    *vpNode
	outside   *vpNode
}

func newVPTree(data []float64, n, dim int, rng *rand.Rand) *vpTree {
	t := &vpTree{data: data, dim: dim}
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	t.root = t.build(items, rng)
	return t
}

func (t *vpTree) point(i int) []float64 {
	return t.data[i*t.dim : (i+1)*t.dim]
}

func (t *vpTree) dist(a []float64, i int) float64 {
	return math.Sqrt(sqDist(a, t.point(i)))
}

func (t *vpTree) build(items []int, rng *rand.Rand) *vpNode {
	if len(items) == 0 {
		return nil
	}
	pick := rng.Intn(len(items))
	items[0], items[pick] = items[pick], items[0]
	node := &vpNode{index: items[0]}

	rest := items[1:]
	if len(rest) == 0 {
		return node
	}

	vp := t.point(node.index)
	ds := make([]float64, len(rest))
	for i, idx := range rest {
		ds[i] = t.dist(vp, idx)
	}
	sort.Sort(byDistance{items: rest, dist: ds})

	median := len(rest) / 2
	node.threshold = ds[median]
	node.inside = t.build(rest[:median], rng)
	node.outside = t.build(rest[median:], rng)
	return node
}

// search returns the k points nearest to target in ascending distance.
func (t *vpTree) search(target []float64, k int) ([]int, []float64) {
	h := &neighbourHeap{}
	tau := math.Inf(1)

	var visit func(node *vpNode)
	visit = func(node *vpNode) {
		if node == nil {
			return
		}
		d := t.dist(target, node.index)
		if d < tau {
			heap.Push(h, neighbour{index: node.index, dist: d})
			if h.Len() > k {
				heap.Pop(h)
			}
			if h.Len() == k {
				tau = (*h)[0].dist
			}
		}
		if node.inside == nil && node.outside == nil {
			return
		}
		if d < node.threshold {
			if d-tau <= node.threshold {
				visit(node.inside)
			}
			if d+tau >= node.threshold {
				visit(node.outside)
			}
		} else {
			if d+tau >= node.threshold {
				visit(node.outside)
			}
			if d-tau <= node.threshold {
				visit(node.inside)
			}
		}
	}
	visit(t.root)

	idx := make([]int, h.Len())
	ds := make([]float64, h.Len())
	for i := len(idx) - 1; i >= 0; i-- {
		nb := heap.Pop(h).(neighbour)
		idx[i] = nb.index
		ds[i] = nb.dist
	}
	return idx, ds
}

type byDistance struct {
	items []int
	dist  []float64
}

func (b byDistance) Len() int { return len(b.items) }

func (b byDistance) Less(i, j int) bool {
	if b.dist[i] != b.dist[j] {
		return b.dist[i] < b.dist[j]
	}
	return b.items[i] < b.items[j]
}

func (b byDistance) Swap(i, j int) {
	b.items[i], b.items[j] = b.items[j], b.items[i]
	b.dist[i], b.dist[j] = b.dist[j], b.dist[i]
}

type neighbour struct {
	index int
	dist  float64
}

// neighbourHeap is a max-heap on distance, ties broken by larger index.
type neighbourHeap []neighbour

func (h neighbourHeap) Len() int { return len(h) }

func (h neighbourHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].index > h[j].index
}

func (h neighbourHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *neighbourHeap) Push(x any) { *h = append(*h, x.(neighbour)) }

func (h *neighbourHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
