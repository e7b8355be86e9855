package predicate

import "strings"

// canonicalizeForComparison lowercases, standardizes operators, and
// collapses whitespace so similarity scoring sees one spelling.
func canonicalizeForComparison(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(operatorReplacer.Replace(s))), " ")
}

// lcsLength is the classic dynamic program over two strings.
func lcsLength(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Similarity scores two predicate strings on [0, 1] as the normalized
// longest-common-subsequence ratio 2*LCS/(len(a)+len(b)) over their
// canonical forms. Identical predicates score 1.
func Similarity(a, b string) float64 {
	ca := canonicalizeForComparison(a)
	cb := canonicalizeForComparison(b)
	if len(ca) == 0 && len(cb) == 0 {
		return 1
	}
	if len(ca) == 0 || len(cb) == 0 {
		return 0
	}
	lcs := lcsLength(ca, cb)
	return 2 * float64(lcs) / float64(len(ca)+len(cb))
}
