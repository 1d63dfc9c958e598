package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineOutput = `goos: linux
BenchmarkMetricsInc-8   	100000000	        10.0 ns/op	       0 B/op	       0 allocs/op
BenchmarkMetricsInc-8   	100000000	        12.0 ns/op	       0 B/op	       0 allocs/op
BenchmarkMetricsInc-8   	100000000	        11.0 ns/op	       0 B/op	       0 allocs/op
BenchmarkRender-8       	    50000	     20000 ns/op	    4096 B/op	      12 allocs/op
BenchmarkUnrelated-8    	    50000	         1 ns/op
PASS
`

func TestParseKeepsTrackedBenchmarks(t *testing.T) {
	s, err := parse(strings.NewReader(baselineOutput))
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 12, 11}, s["BenchmarkMetricsInc"]["ns/op"])
	assert.Equal(t, []float64{12}, s["BenchmarkRender"]["allocs/op"])
	assert.NotContains(t, s, "BenchmarkUnrelated")
}

func TestCompareFlagsRegressions(t *testing.T) {
	base := samples{
		"BenchmarkMetricsInc": {"ns/op": {10, 11, 12}, "allocs/op": {0}},
		"BenchmarkRender":     {"ns/op": {100}},
	}
	cand := samples{
		"BenchmarkMetricsInc": {"ns/op": {11, 12, 13}, "allocs/op": {1}},
		"BenchmarkRender":     {"ns/op": {200}},
	}

	results, failures := compare(base, cand, 0.30)

	joined := strings.Join(failures, "\n")
	assert.Contains(t, joined, "BenchmarkMetricsInc allocs/op went from 0 to 1")
	assert.Contains(t, joined, "BenchmarkRender ns/op regressed")
	assert.NotContains(t, joined, "BenchmarkMetricsInc ns/op regressed")
	assert.Contains(t, joined, "missing samples for BenchmarkMetricsObserveLatencyParallel ns/op")

	require.NotEmpty(t, results)
	assert.Equal(t, "BenchmarkMetricsInc", results[0].benchmark)
	assert.InDelta(t, 12.0/11.0-1, results[0].delta(), 1e-9)
}

func TestTrimProcs(t *testing.T) {
	assert.Equal(t, "BenchmarkRender", trimProcs("BenchmarkRender-16"))
	assert.Equal(t, "BenchmarkRender-fast", trimProcs("BenchmarkRender-fast"))
}

func TestMedianEven(t *testing.T) {
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}
