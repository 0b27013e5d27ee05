package estimation

import (
	"fmt"
	"strconv"

	"github.com/pointdeck/pointdeck/go/internal/models"
)

// Canonical orderings for the two supported schemes. Adjacency for the
// consensus tolerance check is defined over these sequences, not over
// numeric closeness.
var (
	FibonacciValues = []string{"1", "2", "3", "5", "8", "13", "21"}
	TShirtValues    = []string{"XS", "S", "M", "L", "XL", "XXL"}
)

// tshirtPoints maps size labels to the numeric weights used for averaging.
var tshirtPoints = map[string]float64{
	"XS":  1,
	"S":   2,
	"M":   3,
	"L":   5,
	"XL":  8,
	"XXL": 13,
}

// SchemeValues returns the canonical ordered value set for a scheme.
func SchemeValues(scheme models.EstimationScheme) []string {
	switch scheme {
	case models.SchemeTShirt:
		return TShirtValues
	default:
		return FibonacciValues
	}
}

// ValidateValue checks that a submitted vote value belongs to the active
// scheme's value set.
func ValidateValue(scheme models.EstimationScheme, value string) error {
	if value == "" {
		return fmt.Errorf("vote value cannot be empty")
	}
	for _, v := range SchemeValues(scheme) {
		if v == value {
			return nil
		}
	}
	return fmt.Errorf("invalid %s value: %q", scheme, value)
}

// numericValue maps a raw vote value to the number used for averaging.
// T-shirt labels go through the fixed size table; fibonacci votes are
// parsed directly. Unparseable or unknown values map to 0, so a malformed
// vote pulls the average down instead of failing the calculation.
func numericValue(scheme models.EstimationScheme, raw string) float64 {
	if scheme == models.SchemeTShirt {
		return tshirtPoints[raw]
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return n
}

// schemeIndex returns a value's position in the scheme's canonical
// ordering, or -1 when the value is not part of the scheme.
func schemeIndex(scheme models.EstimationScheme, raw string) int {
	for i, v := range SchemeValues(scheme) {
		if v == raw {
			return i
		}
	}
	return -1
}
