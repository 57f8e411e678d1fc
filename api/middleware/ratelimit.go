package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/storia/config"
)

// ipEntry tracks failed login attempts for a single IP.
type ipEntry struct {
	attempts    int
	windowEnd   time.Time
	bannedUntil time.Time
}

// LoginLimiter bans an IP for LoginBanDuration after LoginMaxAttempts failed
// logins inside LoginWindow. A successful login clears the IP's record.
type LoginLimiter struct {
	mu          sync.Mutex
	entries     map[string]*ipEntry
	maxAttempts int
	window      time.Duration
	ban         time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewLoginLimiter starts a limiter whose stale entries are swept every five
// minutes until Stop is called.
func NewLoginLimiter(cfg config.Config) *LoginLimiter {
	l := &LoginLimiter{
		entries:     make(map[string]*ipEntry),
		maxAttempts: cfg.LoginMaxAttempts,
		window:      cfg.LoginWindow,
		ban:         cfg.LoginBanDuration,
		stop:        make(chan struct{}),
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-l.stop:
				return
			}
		}
	}()
	return l
}

func (l *LoginLimiter) cleanup() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.entries {
		if now.After(e.bannedUntil) && now.After(e.windowEnd) {
			delete(l.entries, ip)
		}
	}
}

func (l *LoginLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[ip]
	return !ok || !time.Now().Before(e.bannedUntil)
}

// RecordFailure counts a failed login and bans the IP at the threshold.
func (l *LoginLimiter) RecordFailure(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	e, ok := l.entries[ip]
	if !ok || now.After(e.windowEnd) {
		e = &ipEntry{windowEnd: now.Add(l.window)}
		l.entries[ip] = e
	}
	e.attempts++
	if e.attempts >= l.maxAttempts {
		e.bannedUntil = now.Add(l.ban)
	}
}

// RecordSuccess forgets an IP's failures.
func (l *LoginLimiter) RecordSuccess(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, ip)
}

// Middleware rejects banned IPs with 429. LoginMaxAttempts <= 0 disables it.
func (l *LoginLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.maxAttempts <= 0 {
			c.Next()
			return
		}
		if !l.allow(ClientIP(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many failed login attempts. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

// Stop ends the sweep goroutine. It is safe to call more than once.
func (l *LoginLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// ClientIP honours the engine's trusted-proxy configuration.
func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}
