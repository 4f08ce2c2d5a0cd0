package utils

func AssertInvariant(condition bool, message string) {
	if !condition {
		panic("invariant violated - " + message)
	}
}

// Similarity returns a normalized similarity score between two strings in [0, 1],
// where 1 means equal. The score is 1 - editDistance/maxLen.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(editDistance(a, b))/float64(maxLen)
}

// editDistance computes the Levenshtein distance between two strings using a
// single rolling row
func editDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		current := prev[0]
		prev[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			candidate := current + cost
			if prev[j]+1 < candidate {
				candidate = prev[j] + 1
			}
			if prev[j-1]+1 < candidate {
				candidate = prev[j-1] + 1
			}
			current = prev[j]
			prev[j] = candidate
		}
	}

	return prev[len(b)]
}
