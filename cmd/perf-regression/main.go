// perf-regression compares two `go test -bench` outputs and fails when a
// tracked benchmark got slower than the allowed ratio.
//
//	go test -run '^$' -bench . -count 6 ./... > new.txt
//	perf-regression -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// tracked lists the hot paths of the engine. Counters sit on every cached
// read, so their allocations are gated as well as their latency.
var tracked = map[string][]string{
	"BenchmarkMetricsInc":                              {"ns/op", "allocs/op"},
	"BenchmarkMetricsIncDisabledParallel":              {"ns/op"},
	"BenchmarkMetricsObserveLatencyParallel":           {"ns/op", "allocs/op"},
	"BenchmarkMetricsIncMixedParallelPackedRoundRobin": {"ns/op"},
	"BenchmarkRender":                                  {"ns/op"},
}

// samples maps benchmark name to unit to every observed value.
type samples map[string]map[string][]float64

type comparison struct {
	benchmark string
	unit      string
	base      float64
	candidate float64
}

func (c comparison) delta() float64 {
	return (c.candidate - c.base) / c.base
}

func main() {
	var (
		baselinePath  = flag.String("baseline", "", "benchmark output of the reference build")
		candidatePath = flag.String("candidate", "", "benchmark output of the build under test")
		threshold     = flag.Float64("threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	)
	flag.Parse()

	if *baselinePath == "" || *candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if *threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseFile(*baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseFile(*candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	results, failures := compare(baseline, candidate, *threshold)
	fmt.Println("benchmark unit baseline candidate delta")
	for _, r := range results {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.unit, r.base, r.candidate, r.delta()*100)
	}
	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
		os.Exit(1)
	}
}

// compare returns the medians of every tracked pair in a stable order and
// the list of pairs that are missing or regressed past threshold.
func compare(baseline, candidate samples, threshold float64) ([]comparison, []string) {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		results  []comparison
		failures []string
	)
	for _, name := range names {
		for _, unit := range tracked[name] {
			base, cand := baseline[name][unit], candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}
			c := comparison{benchmark: name, unit: unit, base: median(base), candidate: median(cand)}
			if c.base <= 0 {
				// Zero-alloc baselines only fail when allocations appear.
				if c.candidate > 0 {
					failures = append(failures, fmt.Sprintf("%s %s went from 0 to %.0f", name, unit, c.candidate))
				}
				continue
			}
			results = append(results, c)
			if c.delta() > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, c.delta()*100, threshold*100))
			}
		}
	}
	return results, failures
}

func parseFile(path string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (samples, error) {
	out := samples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := trimProcs(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}
		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], v)
		}
	}
	return out, scanner.Err()
}

// trimProcs strips the -GOMAXPROCS suffix go test appends to names.
func trimProcs(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
