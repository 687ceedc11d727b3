package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	goSignIn "github.com/MrEthical07/goSignIn"
	"github.com/MrEthical07/goSignIn/httpapi"
	signinotel "github.com/MrEthical07/goSignIn/metrics/export/otel"
	"github.com/MrEthical07/goSignIn/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath  = flag.String("config", "", "optional config file (yaml, json or toml)")
		serveAddr   = flag.String("serve", "", "serve the HTTP API on this address instead of running the load test")
		backend     = flag.String("backend", "memory", "attempt and trust backend: memory or redis")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		ops         = flag.Int("ops", 20000, "sign-ins to run in the load test")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		verbose     = flag.Bool("v", false, "development logging, including delivered codes")
	)
	flag.Parse()

	if *ops <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "ops and concurrency must be > 0")
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose || *serveAddr != "" {
		var err error
		if *verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := goSignIn.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	demo := newDemoBackend(logger)
	builder := goSignIn.New().WithBackend(demo).WithLogger(logger)

	if *backend == "redis" {
		client, cleanup, err := openRedis(*redisAddr)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer cleanup()
		cfg.Attempts.Backend = "redis"
		cfg.Trust.Backend = "redis"
		builder.WithRedis(client)
	}

	engine, err := builder.WithConfig(cfg).Build()
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}
	defer engine.Close()

	if *serveAddr != "" {
		if err := serve(*serveAddr, engine, logger); err != nil {
			logger.Fatal("serve", zap.Error(err))
		}
		return
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter, err := signinotel.NewExporter(provider.Meter("signin-demo"), engine)
	if err != nil {
		logger.Fatal("otel exporter", zap.Error(err))
	}
	defer exporter.Close()

	stats := runSignInPhase(context.Background(), engine, demo, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("signin", stats)
	printCollected(reader)
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

func serve(addr string, engine *goSignIn.Engine, logger *zap.Logger) error {
	router := httpapi.NewRouter(engine, logger)
	router.Handle("/metrics", prometheus.NewExporter(engine).Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// runSignInPhase drives ops full phone sign-ins: issue, one wrong code, then
// the delivered code. Every op uses its own number so cooldowns never apply.
func runSignInPhase(ctx context.Context, engine *goSignIn.Engine, demo *demoBackend, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				ref := goSignIn.Phone(fmt.Sprintf("+23480%08d", i))

				t0 := time.Now()
				err := signInOnce(ctx, engine, demo, ref, r)
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
	return computeStats(time.Since(start), latencies, failures)
}

func signInOnce(ctx context.Context, engine *goSignIn.Engine, demo *demoBackend, ref goSignIn.Identity, r *rand.Rand) error {
	if _, err := engine.BeginSignIn(ctx, ref); err != nil {
		return err
	}
	code := demo.peek(ref)
	wrong := fmt.Sprintf("%06d", r.Intn(1_000_000))
	if wrong != code {
		if _, err := engine.SubmitCode(ctx, ref, wrong); !errors.Is(err, goSignIn.ErrRejected) {
			return fmt.Errorf("wrong code not rejected: %v", err)
		}
	}
	a, err := engine.SubmitCode(ctx, ref, code)
	if err != nil {
		return err
	}
	if a.State != goSignIn.StateAuthenticated {
		return fmt.Errorf("unexpected state %s", a.State)
	}
	return nil
}

func printCollected(reader *sdkmetric.ManualReader) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		fmt.Fprintf(os.Stderr, "collect: %v\n", err)
		return
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value == 0 {
				continue
			}
			fmt.Printf("%s %d\n", m.Name, sum.DataPoints[0].Value)
		}
	}
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
	return samples[(len(samples)-1)*p/100]
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
