package textutil

// Ratio returns the normalized indel similarity of a and b in [0, 1]:
// (len(a)+len(b)-indel(a,b)) / (len(a)+len(b)), measured in runes. Two empty
// strings are identical (1.0). The score is symmetric.
func Ratio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	lcs := longestCommonSubsequence(ra, rb)
	// indel distance is total - 2*lcs
	return float64(2*lcs) / float64(total)
}

func longestCommonSubsequence(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
