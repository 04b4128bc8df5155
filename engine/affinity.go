package engine

import (
	"math"
	"math/rand"
	"sort"
)

const (
	perplexityTol   = 1e-5
	perplexitySteps = 200
	dblMin          = 2.2250738585072014e-308
	fltMin          = 1.1754943508222875e-38
)

// affinities is the symmetric joint probability matrix P, either dense (exact
// mode) or in compressed sparse row form (Barnes-Hut mode).
type affinities struct {
	n     int
	dense []float64

	rowPtr []int
	cols   []int
	vals   []float64
}

func (a *affinities) sparse() bool { return a.dense == nil }

func (a *affinities) scale(f float64) {
	if a.sparse() {
		for i := range a.vals {
			a.vals[i] *= f
		}
		return
	}
	for i := range a.dense {
		a.dense[i] *= f
	}
}

// gaussianRow fills out with the conditional probabilities of a point whose
// squared distances to its candidates are dist. The kernel precision is found
// by bisection so that the entropy matches log(perplexity).
func gaussianRow(dist []float64, perplexity float64, out []float64) {
	beta := 1.0
	minBeta, maxBeta := math.Inf(-1), math.Inf(1)
	target := math.Log(perplexity)

	var sum float64
	for step := 0; step < perplexitySteps; step++ {
		sum = 0
		for j, dd := range dist {
			out[j] = math.Exp(-beta * dd)
			sum += out[j]
		}
		if sum == 0 {
			sum = dblMin
		}
		h := 0.0
		for j, dd := range dist {
			h += beta * dd * out[j]
		}
		h = h/sum + math.Log(sum)

		diff := h - target
		if math.Abs(diff) < perplexityTol {
			break
		}
		if diff > 0 {
			minBeta = beta
			if math.IsInf(maxBeta, 1) {
				beta *= 2
			} else {
				beta = (beta + maxBeta) / 2
			}
		} else {
			maxBeta = beta
			if math.IsInf(minBeta, -1) {
				beta /= 2
			} else {
				beta = (beta + minBeta) / 2
			}
		}
	}

	for j := range out {
		out[j] /= sum
	}
}

// exactAffinities computes the dense symmetric P over all pairs.
func exactAffinities(x []float64, n, d int, perplexity float64, threads int) affinities {
	p := make([]float64, n*n)

	parallelFor(threads, n, func(_, lo, hi int) {
		dist := make([]float64, n-1)
		row := make([]float64, n-1)
		for i := lo; i < hi; i++ {
			xi := x[i*d : (i+1)*d]
			k := 0
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				dist[k] = sqDist(xi, x[j*d:(j+1)*d])
				k++
			}
			gaussianRow(dist, perplexity, row)
			k = 0
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				p[i*n+j] = row[k]
				k++
			}
		}
	})

	sum := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := p[i*n+j] + p[j*n+i]
			p[i*n+j] = v
			p[j*n+i] = v
			sum += 2 * v
		}
	}
	if sum > 0 {
		for i := range p {
			p[i] /= sum
		}
	}
	return affinities{n: n, dense: p}
}

// sparseAffinities computes P restricted to each point's k nearest
// neighbours, then symmetrises it.
func sparseAffinities(x []float64, n, d int, perplexity float64, k, threads int, rng *rand.Rand) affinities {
	tree := newVPTree(x, n, d, rng)

	nbrIdx := make([]int, n*k)
	nbrVal := make([]float64, n*k)

	parallelFor(threads, n, func(_, lo, hi int) {
		dist := make([]float64, k)
		for i := lo; i < hi; i++ {
			idx, ds := tree.search(x[i*d:(i+1)*d], k+1)
			m := 0
			for t, j := range idx {
				if j == i || m == k {
					continue
				}
				nbrIdx[i*k+m] = j
				dist[m] = ds[t] * ds[t]
				m++
			}
			gaussianRow(dist[:m], perplexity, nbrVal[i*k:i*k+m])
		}
	})

	return symmetrize(n, k, nbrIdx, nbrVal)
}

// symmetrize returns (P + P^T) / sum as a CSR matrix with sorted columns.
func symmetrize(n, k int, nbrIdx []int, nbrVal []float64) affinities {
	rows := make([]map[int]float64, n)
	for i := range rows {
		rows[i] = make(map[int]float64, k)
	}
	for i := 0; i < n; i++ {
		for m := 0; m < k; m++ {
			j, v := nbrIdx[i*k+m], nbrVal[i*k+m]
			rows[i][j] += v
			rows[j][i] += v
		}
	}

	a := affinities{n: n, rowPtr: make([]int, n+1)}
	sum := 0.0
	for i, row := range rows {
		cols := make([]int, 0, len(row))
		for j := range row {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		for _, j := range cols {
			a.cols = append(a.cols, j)
			a.vals = append(a.vals, row[j])
			sum += row[j]
		}
		a.rowPtr[i+1] = len(a.cols)
	}
	if sum > 0 {
		for i := range a.vals {
			a.vals[i] /= sum
		}
	}
	return a
}
