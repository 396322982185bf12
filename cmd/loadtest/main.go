// loadtest нагружает HTTP API корзины: оптимизация, оформление заказов по плану и отмена.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type loadMode string

const (
	modeOptimize            loadMode = "optimize"
	modeOptimizeOrder       loadMode = "optimize-order"
	modeOptimizeOrderCancel loadMode = "optimize-order-cancel"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	rps         float64
	mode        loadMode
	cancelRate  int
	products    []int64
	quantity    int
	allowSwaps  bool
	addressID   int64
	userID      int64
	users       int
	contact     string
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var (
		cfg          config
		modeValue    string
		productsList string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "basket API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.Float64Var(&cfg.rps, "rps", 0, "scenario start rate limit per second (0 = unlimited)")
	fs.StringVar(&modeValue, "mode", string(modeOptimize), "load mode: optimize | optimize-order | optimize-order-cancel")
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for optimize-order mode (0..100)")
	fs.StringVar(&productsList, "products", "", "comma-separated product ids for the basket")
	fs.IntVar(&cfg.quantity, "quantity", 1, "quantity of each product")
	fs.BoolVar(&cfg.allowSwaps, "allow-swaps", true, "allow same-name product swaps")
	fs.Int64Var(&cfg.addressID, "address-id", 0, "delivery address id (0 = preferred address)")
	fs.Int64Var(&cfg.userID, "user-id", 1, "first user id")
	fs.IntVar(&cfg.users, "users", 1, "number of users cycled from user-id")
	fs.StringVar(&cfg.contact, "contact", "9000000000", "contact number for created orders")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	products, err := parseProducts(productsList)
	if err != nil {
		return cfg, err
	}
	cfg.products = products

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.rps < 0:
		return cfg, errors.New("rps must be >= 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	case cfg.userID <= 0 || cfg.users <= 0:
		return cfg, errors.New("user-id and users must be > 0")
	case cfg.cancelRate < 0 || cfg.cancelRate > 100:
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	case strings.TrimSpace(cfg.baseURL) == "":
		return cfg, errors.New("base-url is required")
	case cfg.mode != modeOptimize && strings.TrimSpace(cfg.contact) == "":
		return cfg, errors.New("contact is required for order modes")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeOptimize, modeOptimizeOrder, modeOptimizeOrderCancel:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func parseProducts(raw string) ([]int64, error) {
	var ids []int64
	for _, chunk := range strings.Split(raw, ",") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		id, err := strconv.ParseInt(chunk, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid product id %q", chunk)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("products are required")
	}
	return ids, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	result := run(context.Background(), cfg, newAPIClient(cfg.baseURL, nil, cfg.timeout, newCollector()))
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// run раздаёт сценарии воркерам и возвращает отчёт после завершения всех.
func run(ctx context.Context, cfg config, client *apiClient) report {
	startedAt := time.Now()
	runID := strconv.FormatInt(startedAt.UnixNano(), 36)

	var limiter *rate.Limiter
	if cfg.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.rps), 1)
	}

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(ctx, client, cfg, id, runID)
			}
		}()
	}

	dispatchJobs(ctx, jobs, cfg, limiter)
	wg.Wait()

	return client.col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config, limiter *rate.Limiter) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; ; i++ {
		if (cfg.duration <= 0 || cfg.totalSet) && i >= cfg.total {
			return
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

func runScenario(ctx context.Context, client *apiClient, cfg config, index int, runID string) (err error) {
	start := time.Now()
	defer func() {
		code := "ok"
		if err != nil {
			code = "failed"
		}
		client.col.record(scenarioMethod, time.Since(start), code, err == nil)
	}()

	userID := cfg.userID + int64(index%cfg.users)
	req := optimizeRequest{AllowSwaps: cfg.allowSwaps}
	if cfg.addressID > 0 {
		req.AddressID = &cfg.addressID
	}
	for _, id := range cfg.products {
		req.Items = append(req.Items, optimizeItem{ProductID: id, Quantity: cfg.quantity})
	}

	optimized, err := client.optimize(ctx, userID, req)
	if err != nil {
		return err
	}
	if optimized.Truncated {
		client.col.recordTruncated()
	}
	if cfg.mode == modeOptimize {
		return nil
	}
	if len(optimized.Result.Marts) == 0 {
		return errors.New("optimizer returned empty plan")
	}

	created, err := client.createFromPlan(ctx, userID, fmt.Sprintf("lt-%s-%d", runID, index), fromPlanRequest{
		Plan:          optimized.Result,
		AddressID:     optimized.Address.ID,
		ContactNumber: cfg.contact,
	})
	if err != nil {
		return err
	}
	if len(created.Orders) == 0 {
		return errors.New("from-plan returned no orders")
	}

	if cfg.mode == modeOptimizeOrderCancel || shouldCancelScenario(index, cfg.cancelRate) {
		for _, order := range created.Orders {
			if err := client.cancel(ctx, userID, order.OrderID); err != nil {
				return err
			}
		}
	}
	return nil
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}
