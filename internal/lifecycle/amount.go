package lifecycle

import (
	"math"
	"strconv"
	"strings"
)

// parseAmount reads money strings such as "$1,250.50".
func parseAmount(s string) (float64, bool) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// sameAmount compares numerically when both sides parse and as trimmed
// strings otherwise.
func sameAmount(a, b string) bool {
	av, aok := parseAmount(a)
	bv, bok := parseAmount(b)
	if aok && bok {
		return math.Abs(av-bv) < 1e-9
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
