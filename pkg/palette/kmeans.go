package palette

import (
	"math"
	"math/rand/v2"
)

type point [3]float64

func sqDist(a, b point) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return d0*d0 + d1*d1 + d2*d2
}

// nearest returns the index of the closest center and the squared distance
func nearest(p point, centers []point) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for i, c := range centers {
		if d := sqDist(p, c); d < bestD {
			best, bestD = i, d
		}
	}
	return best, bestD
}

// seedCenters picks k initial centers with k-means++ weighting
func seedCenters(pts []point, k int, rng *rand.Rand) []point {
	centers := make([]point, 0, k)
	centers = append(centers, pts[rng.IntN(len(pts))])

	dist := make([]float64, len(pts))
	for i, p := range pts {
		dist[i] = sqDist(p, centers[0])
	}

	for len(centers) < k {
		var sum float64
		for _, d := range dist {
			sum += d
		}

		idx := rng.IntN(len(pts))
		if sum > 0 {
			target := rng.Float64() * sum
			for i, d := range dist {
				if d == 0 {
					continue
				}
				// rounding can leave target positive past the end
				idx = i
				target -= d
				if target < 0 {
					break
				}
			}
		}

		c := pts[idx]
		centers = append(centers, c)
		for i, p := range pts {
			if d := sqDist(p, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centers
}

// lloyd refines centers in place and returns the final inertia
func lloyd(pts []point, centers []point, maxIter int, tol float64) float64 {
	k := len(centers)
	sums := make([]point, k)
	counts := make([]int, k)

	for iter := 0; iter < maxIter; iter++ {
		for i := range sums {
			sums[i] = point{}
			counts[i] = 0
		}
		for _, p := range pts {
			c, _ := nearest(p, centers)
			sums[c][0] += p[0]
			sums[c][1] += p[1]
			sums[c][2] += p[2]
			counts[c]++
		}

		var shift float64
		for i := range centers {
			if counts[i] == 0 {
				continue
			}
			n := float64(counts[i])
			next := point{sums[i][0] / n, sums[i][1] / n, sums[i][2] / n}
			shift += sqDist(centers[i], next)
			centers[i] = next
		}
		if shift <= tol {
			break
		}
	}

	var inertia float64
	for _, p := range pts {
		_, d := nearest(p, centers)
		inertia += d
	}
	return inertia
}

// scaledTolerance mirrors the usual convention of expressing the
// convergence tolerance relative to the mean per-channel variance
func scaledTolerance(pts []point, tol float64) float64 {
	if tol <= 0 || len(pts) == 0 {
		return 0
	}
	n := float64(len(pts))
	var mean point
	for _, p := range pts {
		mean[0] += p[0]
		mean[1] += p[1]
		mean[2] += p[2]
	}
	for i := range mean {
		mean[i] /= n
	}
	var variance float64
	for _, p := range pts {
		variance += sqDist(p, mean)
	}
	return tol * variance / n / 3
}

// fit runs inits seeded restarts and returns the centers with lowest inertia
func fit(pts []point, k, inits, maxIter int, tol float64, seed uint64) []point {
	rng := rand.New(rand.NewPCG(seed, seed))
	threshold := scaledTolerance(pts, tol)

	var best []point
	bestInertia := math.Inf(1)
	for run := 0; run < inits; run++ {
		centers := seedCenters(pts, k, rng)
		if inertia := lloyd(pts, centers, maxIter, threshold); inertia < bestInertia {
			best, bestInertia = centers, inertia
		}
	}
	return best
}
