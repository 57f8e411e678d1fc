package gutendex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	// Default interval between health checks.
	defaultHealthInterval = 60 * time.Second
	// Timeout for a single health-check ping.
	healthCheckTimeout = 5 * time.Second
	// Live request failures that mark Gutendex unavailable before the next
	// scheduled check.
	consecutiveRequestFailuresThreshold = 5
)

// HealthChecker periodically pings Gutendex and keeps an in-memory
// availability flag that /ready reports.
type HealthChecker struct {
	client   *Client
	interval time.Duration

	mu           sync.RWMutex
	available    bool
	lastChecked  time.Time
	lastErr      string
	failureCount int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthChecker creates a health checker bound to the given client.
// Call Start() to begin background checking.
func NewHealthChecker(client *Client, interval time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthChecker{
		client:    client,
		interval:  interval,
		available: true,
		done:      make(chan struct{}),
	}
}

// Start begins the background health-check loop. It runs an immediate check,
// then repeats at the configured interval. Safe to call once.
func (hc *HealthChecker) Start(ctx context.Context) {
	ctx, hc.cancel = context.WithCancel(ctx)

	go func() {
		defer close(hc.done)

		hc.check(ctx)

		ticker := time.NewTicker(hc.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hc.check(ctx)
			}
		}
	}()
}

// Stop signals the health-check loop to stop and waits for it to finish.
func (hc *HealthChecker) Stop() {
	if hc.cancel != nil {
		hc.cancel()
	}
	<-hc.done
}

// IsAvailable reports whether Gutendex is considered reachable. It is
// assumed available until a check says otherwise.
func (hc *HealthChecker) IsAvailable() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.available
}

// RecordRequestFailure counts a failed live request. After
// consecutiveRequestFailuresThreshold failures Gutendex is marked
// unavailable until the next successful health check.
func (hc *HealthChecker) RecordRequestFailure() {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.failureCount++
	if hc.failureCount >= consecutiveRequestFailuresThreshold && hc.available {
		slog.Warn("gutendex marked unavailable after repeated request failures",
			"failures", hc.failureCount)
		hc.available = false
	}
}

// RecordRequestSuccess resets the failure counter. Availability itself is
// only restored by the health check.
func (hc *HealthChecker) RecordRequestSuccess() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if hc.available {
		hc.failureCount = 0
	}
}

// HealthStatus is a snapshot of the upstream health.
type HealthStatus struct {
	Available    bool      `json:"available"`
	LastChecked  time.Time `json:"last_checked"`
	LastError    string    `json:"last_error,omitempty"`
	FailureCount int       `json:"failure_count"`
}

// Status returns the current snapshot.
func (hc *HealthChecker) Status() HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return HealthStatus{
		Available:    hc.available,
		LastChecked:  hc.lastChecked,
		LastError:    hc.lastErr,
		FailureCount: hc.failureCount,
	}
}

// check fetches a one-book listing, the cheapest Gutendex query.
func (hc *HealthChecker) check(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, hc.client.baseURL+"/books/?ids=1", nil)
	if err != nil {
		hc.recordResult(fmt.Errorf("bad url: %w", err))
		return
	}

	resp, err := hc.client.jsonClient.Do(req)
	if err != nil {
		hc.recordResult(err)
		return
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		hc.recordResult(nil)
	} else {
		hc.recordResult(fmt.Errorf("status %d", resp.StatusCode))
	}
}

// recordResult marks Gutendex unavailable after 2 consecutive failures and
// available again on the first success.
func (hc *HealthChecker) recordResult(err error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.lastChecked = time.Now()

	if err == nil {
		if !hc.available {
			slog.Info("gutendex came back online")
		}
		hc.available = true
		hc.failureCount = 0
		hc.lastErr = ""
		return
	}

	hc.failureCount++
	hc.lastErr = err.Error()

	if hc.failureCount >= 2 && hc.available {
		slog.Warn("gutendex marked unavailable",
			"failures", hc.failureCount, "error", err)
		hc.available = false
	}
}
