package prom

import "strconv"

// Party sizes above this share one label value to bound cardinality.
const maxPartiesLabel = 64

func partiesLabel(n int) string {
	if n > maxPartiesLabel {
		return ">" + strconv.Itoa(maxPartiesLabel)
	}
	return strconv.Itoa(n)
}
