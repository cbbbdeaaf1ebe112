package rbf

// Powers returns every multi-index of length dim whose total degree is at
// most order, ordered by degree and then with earlier axes first. These are
// the exponents of the monomial basis of that order.
//
//	Powers(1, 2) // [[0 0] [1 0] [0 1]]
func Powers(order, dim int) [][]int {
	if order < 0 || dim < 0 {
		return nil
	}
	var out [][]int
	for deg := 0; deg <= order; deg++ {
		out = appendDegree(out, make([]int, dim), 0, deg)
	}
	return out
}

// appendDegree fills cur[axis:] with every split of rem and appends the results.
func appendDegree(out [][]int, cur []int, axis, rem int) [][]int {
	if axis == len(cur) {
		if rem == 0 {
			out = append(out, append([]int(nil), cur...))
		}
		return out
	}
	if axis == len(cur)-1 {
		cur[axis] = rem
		out = append(out, append([]int(nil), cur...))
		cur[axis] = 0
		return out
	}
	for k := rem; k >= 0; k-- {
		cur[axis] = k
		out = appendDegree(out, cur, axis+1, rem-k)
	}
	cur[axis] = 0
	return out
}
