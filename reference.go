// Package apsp reference implementations for verification
package apsp

import "math/bits"

// FloydWarshallHost computes APSP of g on the host with the classic
// triple loop. It is the reference the device engines are checked
// against. g must be valid.
func FloydWarshallHost(g Graph) *DistanceMatrix {
	n := g.N
	l := Layout{N: n, Stride: n, Rows: n}
	distance := Seed(g, l)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			ik := distance[i*n+k]
			for j := 0; j < n; j++ {
				if d := ik + distance[k*n+j]; d < distance[i*n+j] {
					distance[i*n+j] = d
				}
			}
		}
	}
	return &DistanceMatrix{Layout: l, Data: distance}
}

// TropicalHost computes APSP of g on the host by repeated min-plus
// squaring and returns the number of rounds it took.
func TropicalHost(g Graph) (*DistanceMatrix, int) {
	n := g.N
	l := Layout{N: n, Stride: n, Rows: n}
	cur := Seed(g, l)
	next := make([]float32, len(cur))
	rounds := 0
	for k := 1; k < n; k *= 2 {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				best := cur[i*n+j]
				for m := 0; m < n; m++ {
					if d := cur[i*n+m] + cur[m*n+j]; d < best {
						best = d
					}
				}
				next[i*n+j] = best
			}
		}
		cur, next = next, cur
		rounds++
	}
	return &DistanceMatrix{Layout: l, Data: cur}, rounds
}

// RoundsForDiameter returns the number of squaring rounds after which
// every distance up to diameter is exact: ceil(log2 diameter).
func RoundsForDiameter(diameter int) int {
	if diameter <= 1 {
		return 0
	}
	return bits.Len(uint(diameter - 1))
}
