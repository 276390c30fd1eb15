package dedup

// Similarity returns a normalized sequence-similarity score in [0, 1] between
// the two texts after normalization. It is the Ratcliff/Obershelp ratio
// 2*M/T, where M is the total length of matching blocks and T the combined
// length. Empty input on either side scores zero.
func Similarity(a, b string) float64 {
	na, nb := NormalizeText(a), NormalizeText(b)
	if na == "" || nb == "" {
		return 0
	}
	return ratio([]rune(na), []rune(nb))
}

func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingLen(a, b)) / float64(total)
}

// matchingLen sums the longest common substring and, recursively, the matches
// to its left and right, per Ratcliff/Obershelp.
func matchingLen(a, b []rune) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	m := size
	m += matchingLen(a[:ai], b[:bi])
	m += matchingLen(a[ai+size:], b[bi+size:])
	return m
}

func longestCommonSubstring(a, b []rune) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// One DP row; lengths[j] is the common-suffix length ending at a[i], b[j].
	lengths := make([]int, len(b)+1)
	for i := range a {
		prev := 0
		for j := range b {
			cur := lengths[j+1]
			if a[i] == b[j] {
				lengths[j+1] = prev + 1
				if lengths[j+1] > size {
					size = lengths[j+1]
					ai = i - size + 1
					bi = j - size + 1
				}
			} else {
				lengths[j+1] = 0
			}
			prev = cur
		}
	}
	return ai, bi, size
}
