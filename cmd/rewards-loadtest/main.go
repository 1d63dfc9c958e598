package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goRewards "github.com/MrEthical07/goRewards"
	"github.com/MrEthical07/goRewards/internal/twin"
	"github.com/MrEthical07/goRewards/jwt"
	"github.com/MrEthical07/goRewards/wallet"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		accounts    = flag.Int("accounts", 200, "number of wallet accounts to create")
		optedIn     = flag.Int("opted-in", 50, "number of accounts opted in before the run")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		ops         = flag.Int("ops", 5000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "rewards-loadtest", "state key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 || *optedIn < 0 || *optedIn > *accounts {
		fmt.Fprintln(os.Stderr, "accounts, concurrency and ops must be > 0 and opted-in must be within accounts")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backendURL, stopBackend := startTwin()
	defer stopBackend()
	fmt.Printf("using rewards twin at %s\n", backendURL)

	signer := wallet.NewLocalSigner()
	all := make([]wallet.Account, *accounts)
	for i := range all {
		a, err := signer.NewEVMAccount()
		if err != nil {
			fmt.Fprintf(os.Stderr, "create account failed: %v\n", err)
			os.Exit(1)
		}
		all[i] = a
	}
	source := wallet.NewMemorySource(all...)

	cfg := goRewards.DefaultConfig()
	cfg.API.BaseURL = backendURL
	cfg.API.GeoLocationURL = backendURL + "/geolocation"
	cfg.State.RedisPrefix = *prefix
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := goRewards.New().
		WithConfig(cfg).
		WithSigner(signer).
		WithAccounts(source).
		WithRedis(client).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	var subscriptionID string
	if *optedIn > 0 {
		fmt.Printf("opting in %d accounts...\n", *optedIn)
		startSeed := time.Now()
		subscriptionID, err = engine.OptIn(ctx, all[:*optedIn], "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "opt in failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("opted in in %s\n", time.Since(startSeed).Round(time.Millisecond))
	}

	authStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		a := all[r.Intn(len(all))]
		_, err := engine.PerformSilentAuth(ctx, &a, false, true)
		return err
	})

	addresses := make([]string, len(all))
	for i, a := range all {
		addresses[i] = a.Address
	}
	oisStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		start := r.Intn(len(addresses))
		end := min(start+50, len(addresses))
		_, err := engine.GetOptInStatus(ctx, addresses[start:end])
		return err
	})

	var seasonStats phaseStats
	if subscriptionID != "" {
		meta, err := engine.GetSeasonMetadata(ctx, goRewards.SeasonCurrent)
		if err != nil || meta == nil {
			fmt.Fprintf(os.Stderr, "season metadata failed: %v\n", err)
			os.Exit(1)
		}
		seasonStats = runPhase(*ops, *concurrency, 4099, func(*rand.Rand) error {
			_, err := engine.GetSeasonStatus(ctx, subscriptionID, meta.ID)
			return err
		})
	}

	fmt.Println("---- results ----")
	printStats("silent-auth", authStats)
	printStats("opt-in-status", oisStats)
	if subscriptionID != "" {
		printStats("season-status", seasonStats)
	}
	snap := engine.MetricsSnapshot()
	fmt.Printf("metrics: auth_success=%d auth_skipped=%d ois_cache_hit=%d season_cache_hit=%d season_cache_miss=%d\n",
		snap.Counters[goRewards.MetricSilentAuthSuccess],
		snap.Counters[goRewards.MetricSilentAuthSkipped],
		snap.Counters[goRewards.MetricOptInStatusCacheHit],
		snap.Counters[goRewards.MetricSeasonCacheHit],
		snap.Counters[goRewards.MetricSeasonCacheMiss],
	)
}

// startTwin serves an in-process rewards backend.
func startTwin() (string, func()) {
	tokens, err := jwt.NewManager(jwt.Config{
		SessionTTL:    time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("rewards-loadtest"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "token manager failed: %v\n", err)
		os.Exit(1)
	}
	store := twin.New()
	store.SeedDefaults()
	h, err := twin.NewHandler(store, twin.Config{Tokens: tokens})
	if err != nil {
		fmt.Fprintf(os.Stderr, "twin handler failed: %v\n", err)
		os.Exit(1)
	}
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	return srv.URL, srv.Close
}

func runPhase(ops, concurrency int, seed int64, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
