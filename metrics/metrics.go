// Package metrics aggregates store.RunRecord history into a Summary: a
// pure function over loaded records, no I/O surface of its own, per
// SPEC_FULL.md's Metrics section.
package metrics

import (
	"math/big"
	"sort"

	"github.com/shoheigorila/a1agent/store"
)

// ProfitBucket counts runs whose best profit fell within [Min, Max) wei
// (Max == nil means unbounded above).
type ProfitBucket struct {
	Min   *big.Int
	Max   *big.Int
	Count int
}

// Summary is the aggregate view over a set of RunRecords.
type Summary struct {
	TotalRuns      int
	SuccessfulRuns int
	SuccessRate    float64
	MeanTurns      float64
	MedianTurns    float64
	MeanTokens     float64
	ProfitBuckets  []ProfitBucket
}

// defaultBucketBoundsWei returns the lower bounds of four human-legible wei
// ranges for profitable runs: [0, 0.01 ETH), [0.01 ETH, 0.1 ETH),
// [0.1 ETH, 1 ETH), and 1 ETH and above.
func defaultBucketBoundsWei() []*big.Int {
	eth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	div := func(n, d int64) *big.Int {
		return new(big.Int).Div(new(big.Int).Mul(eth, big.NewInt(n)), big.NewInt(d))
	}
	return []*big.Int{
		big.NewInt(0),
		div(1, 100),
		div(1, 10),
		new(big.Int).Set(eth),
	}
}

// Aggregate computes a Summary over records. Unparseable BestProfit
// strings are treated as zero for bucketing purposes but still counted
// toward TotalRuns/SuccessfulRuns.
func Aggregate(records []store.RunRecord) Summary {
	s := Summary{TotalRuns: len(records)}
	if len(records) == 0 {
		return s
	}

	turns := make([]int, 0, len(records))
	totalTurns, totalTokens := 0, 0

	bounds := defaultBucketBoundsWei()
	buckets := make([]ProfitBucket, len(bounds))
	for i, b := range bounds {
		var max *big.Int
		if i+1 < len(bounds) {
			max = bounds[i+1]
		}
		buckets[i] = ProfitBucket{Min: b, Max: max}
	}

	for _, rec := range records {
		if rec.OK {
			s.SuccessfulRuns++
		}
		turns = append(turns, rec.Turns)
		totalTurns += rec.Turns
		totalTokens += rec.TotalTokens

		if !rec.OK {
			continue
		}
		profit, ok := new(big.Int).SetString(rec.BestProfit, 10)
		if !ok || profit.Sign() < 0 {
			profit = big.NewInt(0)
		}
		idx := bucketIndex(buckets, profit)
		buckets[idx].Count++
	}

	s.SuccessRate = float64(s.SuccessfulRuns) / float64(s.TotalRuns)
	s.MeanTurns = float64(totalTurns) / float64(s.TotalRuns)
	s.MeanTokens = float64(totalTokens) / float64(s.TotalRuns)
	s.MedianTurns = medianInt(turns)
	s.ProfitBuckets = buckets
	return s
}

func bucketIndex(buckets []ProfitBucket, profit *big.Int) int {
	for i := len(buckets) - 1; i >= 0; i-- {
		if profit.Cmp(buckets[i].Min) >= 0 {
			return i
		}
	}
	return 0
}

func medianInt(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
