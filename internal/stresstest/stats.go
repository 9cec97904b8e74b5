package stresstest

import (
	"fmt"
	"math"
	"sort"
)

// Percentiles reported for every run
var ReportedPercentiles = []float64{50, 90, 99, 99.9}

// Bucket is the number of samples observed at one millisecond latency
type Bucket struct {
	LatencyMs int64
	Count     int64
}

// Summary holds the statistics of a run. HasData is false when no sample was
// collected, in which case every other field except Count is zero and must
// be reported as "no data".
type Summary struct {
	Count   int64   `json:"count" yaml:"count"`
	HasData bool    `json:"has_data" yaml:"has_data"`
	MinMs   int64   `json:"min_ms" yaml:"min_ms"`
	MaxMs   int64   `json:"max_ms" yaml:"max_ms"`
	MeanMs  float64 `json:"mean_ms" yaml:"mean_ms"`
	P50Ms   int64   `json:"p50_ms" yaml:"p50_ms"`
	P90Ms   int64   `json:"p90_ms" yaml:"p90_ms"`
	P99Ms   int64   `json:"p99_ms" yaml:"p99_ms"`
	P999Ms  int64   `json:"p999_ms" yaml:"p999_ms"`
}

// Distribution is a frequency distribution of latencies bucketed by
// millisecond. It depends only on the multiset of samples, never on their
// order.
type Distribution struct {
	counts map[int64]int64
	count  int64
	sum    int64
	min    int64
	max    int64
}

// NewDistribution builds a distribution from samples
func NewDistribution(samples []int64) *Distribution {
	d := &Distribution{
		counts: make(map[int64]int64),
		min:    -1,
		max:    -1,
	}
	for _, latency := range samples {
		d.Add(latency)
	}
	return d
}

// Add records a single sample. Negative latencies are clamped to 0.
func (d *Distribution) Add(latencyMs int64) {
	d.AddCount(latencyMs, 1)
}

// AddCount records count samples of the same latency
func (d *Distribution) AddCount(latencyMs int64, count int64) {
	if count <= 0 {
		return
	}
	if latencyMs < 0 {
		latencyMs = 0
	}
	d.counts[latencyMs] += count
	d.count += count
	d.sum += latencyMs * count

	if d.min == -1 || latencyMs < d.min {
		d.min = latencyMs
	}
	if d.max == -1 || latencyMs > d.max {
		d.max = latencyMs
	}
}

// Count returns the number of samples
func (d *Distribution) Count() int64 {
	return d.count
}

// Min returns the smallest sample
func (d *Distribution) Min() (int64, error) {
	if d.count == 0 {
		return 0, ErrNoData
	}
	return d.min, nil
}

// Max returns the largest sample
func (d *Distribution) Max() (int64, error) {
	if d.count == 0 {
		return 0, ErrNoData
	}
	return d.max, nil
}

// Mean returns the arithmetic mean
func (d *Distribution) Mean() (float64, error) {
	if d.count == 0 {
		return 0, ErrNoData
	}
	return float64(d.sum) / float64(d.count), nil
}

// Buckets returns the non-empty buckets in ascending latency order
func (d *Distribution) Buckets() []Bucket {
	buckets := make([]Bucket, 0, len(d.counts))
	for latency, count := range d.counts {
		buckets = append(buckets, Bucket{LatencyMs: latency, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].LatencyMs < buckets[j].LatencyMs
	})
	return buckets
}

// Percentile returns the nearest-rank percentile, rounding the rank up:
// the value of the ceil(p/100 * n)-th smallest sample. p is taken with a
// precision of 0.1 and must be in (0, 100].
func (d *Distribution) Percentile(p float64) (int64, error) {
	if d.count == 0 {
		return 0, ErrNoData
	}
	permille := int64(math.Round(p * 10))
	if permille <= 0 || permille > 1000 {
		return 0, fmt.Errorf("percentile %v out of range (0, 100]", p)
	}

	// Integer arithmetic keeps p99.9 of 1000 samples at rank 999
	rank := (permille*d.count + 999) / 1000
	if rank < 1 {
		rank = 1
	}

	var seen int64
	for _, b := range d.Buckets() {
		seen += b.Count
		if seen >= rank {
			return b.LatencyMs, nil
		}
	}
	return d.max, nil
}

// Summary reduces the distribution to the reported statistics
func (d *Distribution) Summary() Summary {
	s := Summary{Count: d.count}
	if d.count == 0 {
		return s
	}

	s.HasData = true
	s.MinMs = d.min
	s.MaxMs = d.max
	s.MeanMs, _ = d.Mean()

	values := make([]int64, len(ReportedPercentiles))
	for i, p := range ReportedPercentiles {
		values[i], _ = d.Percentile(p)
	}
	s.P50Ms, s.P90Ms, s.P99Ms, s.P999Ms = values[0], values[1], values[2], values[3]

	return s
}

// Summarize computes the statistics of a set of samples
func Summarize(samples []int64) Summary {
	return NewDistribution(samples).Summary()
}
