package estimation

import (
	"math"
	"strconv"

	"github.com/pointdeck/pointdeck/go/internal/models"
)

// Result is the derived consensus signal for one item's vote set. It is
// recomputed on every change to the votes, never mutated in place.
type Result struct {
	// Consensus is the agreed value when HasConsensus is true, "" otherwise.
	Consensus    string  `json:"consensus"`
	Average      float64 `json:"average"`
	HasConsensus bool    `json:"has_consensus"`
}

// Calculate computes the consensus signal for a list of raw vote values
// under the given scheme. It never fails: an empty list yields the zero
// signal and unparseable votes are averaged as 0.
//
// Consensus holds when all votes share one distinct value, or when exactly
// two distinct values are one step apart in the scheme's canonical
// ordering ([5, 8] agrees under fibonacci, [3, 13] does not).
func Calculate(scheme models.EstimationScheme, values []string) Result {
	if len(values) == 0 {
		return Result{}
	}

	var sum float64
	distinct := make(map[string]struct{}, len(values))
	for _, v := range values {
		sum += numericValue(scheme, v)
		distinct[v] = struct{}{}
	}
	avg := sum / float64(len(values))

	res := Result{Average: avg}
	switch len(distinct) {
	case 1:
		res.HasConsensus = true
	case 2:
		keys := make([]string, 0, 2)
		for k := range distinct {
			keys = append(keys, k)
		}
		a, b := schemeIndex(scheme, keys[0]), schemeIndex(scheme, keys[1])
		if a >= 0 && b >= 0 && absInt(a-b) == 1 {
			res.HasConsensus = true
		}
	}

	if res.HasConsensus {
		res.Consensus = consensusValue(scheme, avg)
	}
	return res
}

// consensusValue picks the reported consensus: the rounded average for
// fibonacci, or the size whose weight is closest to the average for
// t-shirt sizing (ties broken by table order).
func consensusValue(scheme models.EstimationScheme, avg float64) string {
	if scheme != models.SchemeTShirt {
		return strconv.Itoa(int(math.Round(avg)))
	}

	best := TShirtValues[0]
	bestDist := math.Abs(tshirtPoints[best] - avg)
	for _, size := range TShirtValues[1:] {
		if d := math.Abs(tshirtPoints[size] - avg); d < bestDist {
			best, bestDist = size, d
		}
	}
	return best
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
