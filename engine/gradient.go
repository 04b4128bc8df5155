package engine

import "math"

// optimizer holds the state shared by gradient and cost evaluation.
type optimizer struct {
	n       int
	dims    int
	theta   float64
	threads int
	p       affinities
	y       []float64

	q []float64 // dense kernel scratch, exact mode only
}

func (o *optimizer) row(i int) []float64 {
	return o.y[i*o.dims : (i+1)*o.dims]
}

func (o *optimizer) gradient(grad []float64) {
	if o.p.sparse() {
		o.barnesHutGradient(grad)
		return
	}
	o.exactGradient(grad)
}

// studentT fills q with the unnormalised kernel 1/(1+|yi-yj|^2), zero on the
// diagonal, and returns its sum.
func (o *optimizer) studentT(q []float64) float64 {
	n := o.n
	partials := make([]float64, numChunks(o.threads, n))
	parallelFor(o.threads, n, func(c, lo, hi int) {
		s := 0.0
		for i := lo; i < hi; i++ {
			yi := o.row(i)
			for j := 0; j < n; j++ {
				if j == i {
					q[i*n+j] = 0
					continue
				}
				v := 1 / (1 + sqDist(yi, o.row(j)))
				q[i*n+j] = v
				s += v
			}
		}
		partials[c] = s
	})
	return sumInOrder(partials)
}

func (o *optimizer) kernel() []float64 {
	if o.q == nil {
		o.q = make([]float64, o.n*o.n)
	}
	return o.q
}

func (o *optimizer) exactGradient(grad []float64) {
	n, nd := o.n, o.dims
	q := o.kernel()
	sumQ := o.studentT(q)

	parallelFor(o.threads, n, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			g := grad[i*nd : (i+1)*nd]
			for k := range g {
				g[k] = 0
			}
			yi := o.row(i)
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				qij := q[i*n+j]
				mult := (o.p.dense[i*n+j] - qij/sumQ) * qij
				yj := o.row(j)
				for k := range g {
					g[k] += (yi[k] - yj[k]) * mult
				}
			}
		}
	})
}

func (o *optimizer) barnesHutGradient(grad []float64) {
	n, nd := o.n, o.dims
	tree := newSPTree(o.y, n, nd)
	neg := make([]float64, n*nd)
	partials := make([]float64, numChunks(o.threads, n))

	parallelFor(o.threads, n, func(c, lo, hi int) {
		s := 0.0
		for i := lo; i < hi; i++ {
			s += tree.repulsion(i, o.theta, neg[i*nd:(i+1)*nd])
			o.attraction(i, grad[i*nd:(i+1)*nd])
		}
		partials[c] = s
	})

	sumQ := sumInOrder(partials)
	for i := range grad {
		grad[i] -= neg[i] / sumQ
	}
}

// attraction writes the attractive force on point i from its neighbours in P.
func (o *optimizer) attraction(i int, out []float64) {
	for k := range out {
		out[k] = 0
	}
	yi := o.row(i)
	for e := o.p.rowPtr[i]; e < o.p.rowPtr[i+1]; e++ {
		yj := o.row(o.p.cols[e])
		mult := o.p.vals[e] / (1 + sqDist(yi, yj))
		for k := range out {
			out[k] += mult * (yi[k] - yj[k])
		}
	}
}

// pointCosts returns each point's contribution to KL(P||Q).
func (o *optimizer) pointCosts() []float64 {
	costs := make([]float64, o.n)
	if o.p.sparse() {
		o.sparseCosts(costs)
	} else {
		o.exactCosts(costs)
	}
	return costs
}

func (o *optimizer) totalCost() float64 {
	return sumInOrder(o.pointCosts())
}

func klTerm(p, q float64) float64 {
	return p * math.Log((p+fltMin)/(q+fltMin))
}

func (o *optimizer) exactCosts(costs []float64) {
	n := o.n
	q := o.kernel()
	sumQ := o.studentT(q)

	parallelFor(o.threads, n, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			c := 0.0
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				c += klTerm(o.p.dense[i*n+j], q[i*n+j]/sumQ)
			}
			costs[i] = c
		}
	})
}

func (o *optimizer) sparseCosts(costs []float64) {
	n, nd := o.n, o.dims
	tree := newSPTree(o.y, n, nd)
	partials := make([]float64, numChunks(o.threads, n))

	parallelFor(o.threads, n, func(c, lo, hi int) {
		scratch := make([]float64, nd)
		s := 0.0
		for i := lo; i < hi; i++ {
			s += tree.repulsion(i, o.theta, scratch)
		}
		partials[c] = s
	})
	sumQ := sumInOrder(partials)

	parallelFor(o.threads, n, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			yi := o.row(i)
			c := 0.0
			for e := o.p.rowPtr[i]; e < o.p.rowPtr[i+1]; e++ {
				qij := 1 / (1 + sqDist(yi, o.row(o.p.cols[e]))) / sumQ
				c += klTerm(o.p.vals[e], qij)
			}
			costs[i] = c
		}
	})
}
