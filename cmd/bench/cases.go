// README: Bench test cases: environment checks, order lifecycle, claim race, throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/MetricCode/yetueats-orders/internal/modules/history"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

// request issues an authenticated API call using the dev-mode identity
// headers; the target server must run without a Firebase verifier.
func (r *Runner) request(ctx context.Context, method, path, uid, role string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Debug-UID", uid)
	req.Header.Set("X-Debug-Role", role)

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp, data, err
}

func validOrderBody() map[string]any {
	return map[string]any{
		"restaurantId": "r1",
		"items": []map[string]any{
			{
				"name":      "Chicken Biryani",
				"unitPrice": map[string]any{"amount": 1500, "currency": "KES"},
				"quantity":  2,
			},
		},
		"deliveryAddress": map[string]any{"street": "Moi Avenue", "city": "Nairobi"},
	}
}

// createOrder places one order and returns its id.
func (r *Runner) createOrder(ctx context.Context, customerID string) (string, error) {
	resp, data, err := r.request(ctx, http.MethodPost, "/api/customer/orders", customerID, "customer", validOrderBody())
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create returned %d: %s", resp.StatusCode, data)
	}
	var out struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	return out.Order.ID, nil
}

func (r *Runner) setStatus(ctx context.Context, orderID, uid, role, status string) error {
	resp, data, err := r.request(ctx, http.MethodPost,
		fmt.Sprintf("/api/%s/orders/%s/status", role, orderID), uid, role,
		map[string]any{"status": status})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s -> %s returned %d: %s", role, status, resp.StatusCode, data)
	}
	return nil
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "journal DSN not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Journal: apply schema (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplySchema {
					return Result{Status: "SKIP", Note: "apply-schema=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "journal DSN not configured"}
				}
				if _, err := r.db.Exec(ctx, history.Schema); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Journal: events table exists",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "journal DSN not configured"}
				}
				var exists bool
				err := r.db.QueryRow(ctx,
					"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
					"order_state_events",
				).Scan(&exists)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if !exists {
					return Result{Status: "FAIL", Note: "missing table: order_state_events"}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "API: health endpoint",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				resp, _, err := r.request(ctx, http.MethodGet, "/healthz", "", "", nil)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if resp.StatusCode != http.StatusOK {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d", resp.StatusCode)}
				}
				return Result{Status: "PASS", Latency: time.Since(start)}
			},
		},
		{
			Name: "Order: create (valid)",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				if _, err := r.createOrder(ctx, "bench-c1"); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS", Latency: time.Since(start)}
			},
		},
		{
			Name: "Order: create (missing fields -> 400)",
			Run: func(ctx context.Context, r *Runner) Result {
				resp, _, err := r.request(ctx, http.MethodPost, "/api/customer/orders", "bench-c1", "customer", map[string]any{})
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if resp.StatusCode != http.StatusBadRequest {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d, want 400", resp.StatusCode)}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Order: full lifecycle placed -> delivered",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				id, err := r.createOrder(ctx, "bench-c2")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, step := range []struct{ uid, role, status string }{
					{"r1", "restaurant", "confirmed"},
					{"r1", "restaurant", "preparing"},
					{"r1", "restaurant", "ready_for_pickup"},
				} {
					if err := r.setStatus(ctx, id, step.uid, step.role, step.status); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				resp, data, err := r.request(ctx, http.MethodPost, "/api/courier/orders/"+id+"/claim", "bench-k1", "courier", nil)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if resp.StatusCode != http.StatusOK {
					return Result{Status: "FAIL", Note: fmt.Sprintf("claim status=%d: %s", resp.StatusCode, data)}
				}
				for _, status := range []string{"on_the_way", "delivered"} {
					if err := r.setStatus(ctx, id, "bench-k1", "courier", status); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS", Latency: time.Since(start)}
			},
		},
		{
			Name: "Order: concurrent claim (exactly one winner)",
			Run: func(ctx context.Context, r *Runner) Result {
				id, err := r.createOrder(ctx, "bench-c3")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, status := range []string{"confirmed", "preparing", "ready_for_pickup"} {
					if err := r.setStatus(ctx, id, "r1", "restaurant", status); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}

				var wg sync.WaitGroup
				var wins, conflicts, other atomic.Int64
				for i := 0; i < r.cfg.Concurrency; i++ {
					wg.Add(1)
					go func(n int) {
						defer wg.Done()
						resp, _, err := r.request(ctx, http.MethodPost,
							"/api/courier/orders/"+id+"/claim",
							fmt.Sprintf("bench-k%d", n), "courier", nil)
						if err != nil {
							other.Add(1)
							return
						}
						switch resp.StatusCode {
						case http.StatusOK:
							wins.Add(1)
						case http.StatusConflict:
							conflicts.Add(1)
						default:
							other.Add(1)
						}
					}(i)
				}
				wg.Wait()

				if wins.Load() != 1 || other.Load() != 0 {
					return Result{Status: "FAIL",
						Note: fmt.Sprintf("wins=%d conflicts=%d other=%d", wins.Load(), conflicts.Load(), other.Load())}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("conflicts=%d", conflicts.Load())}
			},
		},
		{
			Name: "Perf: order creation throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				deadline := time.Now().Add(r.cfg.Duration)
				var total, failed atomic.Int64
				var wg sync.WaitGroup
				for i := 0; i < r.cfg.Concurrency; i++ {
					wg.Add(1)
					go func(n int) {
						defer wg.Done()
						for time.Now().Before(deadline) && ctx.Err() == nil {
							if _, err := r.createOrder(ctx, fmt.Sprintf("bench-perf-%d", n)); err != nil {
								failed.Add(1)
							}
							total.Add(1)
						}
					}(i)
				}
				wg.Wait()

				if total.Load() == 0 {
					return Result{Status: "FAIL", Note: "no requests completed"}
				}
				rps := float64(total.Load()) / r.cfg.Duration.Seconds()
				note := fmt.Sprintf("%.0f req/s, failed=%d/%d", rps, failed.Load(), total.Load())
				if failed.Load() > 0 {
					return Result{Status: "FAIL", Note: note}
				}
				return Result{Status: "PASS", Note: note}
			},
		},
	}
}
