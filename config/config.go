package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvProduction is the APP_ENV value that disables debug and test endpoints.
const EnvProduction = "production"

type Config struct {
	// AppEnv is the deployment environment. "production" loads .env.production
	// and disables the debug endpoints.
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":3000"`
	// ExternalURL is the publicly reachable URL of the app. Its origin is
	// always allowed to make credentialed cross-origin requests.
	ExternalURL string `env:"EXTERNAL_URL" envDefault:"http://localhost:3000"`
	// CORSOrigins is an additional comma-separated set of allowed origins.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// DatabasePath is the SQLite DSN holding users, favorites and sessions.
	// The default is a named in-memory database shared by all connections.
	DatabasePath string `env:"DATABASE_PATH" envDefault:"file:storia?mode=memory&cache=shared&_pragma=foreign_keys(1)"`
	// SessionLifetime is the absolute lifetime of a login session.
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`
	// CookieSecure marks the session cookie Secure. Enable behind TLS.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"false"`

	// LoginMaxAttempts is the number of failed login attempts allowed per IP
	// within LoginWindow before the IP is temporarily blocked. 0 disables it.
	LoginMaxAttempts int `env:"LOGIN_MAX_ATTEMPTS" envDefault:"10"`
	// LoginWindow is the sliding window duration for counting failed logins.
	LoginWindow time.Duration `env:"LOGIN_WINDOW" envDefault:"15m"`
	// LoginBanDuration is how long an IP is blocked after exceeding LoginMaxAttempts.
	LoginBanDuration time.Duration `env:"LOGIN_BAN_DURATION" envDefault:"15m"`

	// InitialUserName, InitialUserEmail and InitialUserPassword describe an
	// account created on first startup when no users exist. Seeding is
	// skipped when the password is empty.
	InitialUserName     string `env:"INITIAL_USER_NAME" envDefault:"Reader"`
	InitialUserEmail    string `env:"INITIAL_USER_EMAIL"`
	InitialUserPassword string `env:"INITIAL_USER_PASSWORD"`

	// CacheDuration is the TTL applied to book metadata, listings, page
	// estimates, page ranges and pages. Generated music lives twice as long.
	CacheDuration time.Duration `env:"CACHE_DURATION" envDefault:"1h"`
	// CacheCapacity bounds the number of cached entries. 0 means unbounded.
	CacheCapacity uint64 `env:"CACHE_CAPACITY" envDefault:"0"`

	// GutendexURL is the base URL of the book metadata API.
	GutendexURL string `env:"GUTENDEX_URL" envDefault:"https://gutendex.com"`
	// GutendexTimeout bounds a single metadata request.
	GutendexTimeout time.Duration `env:"GUTENDEX_TIMEOUT" envDefault:"15s"`
	// GutendexRateLimit caps outbound metadata requests per second. 0 is unlimited.
	GutendexRateLimit float64 `env:"GUTENDEX_RATE_LIMIT" envDefault:"0"`
	// HealthCheckInterval is how often Gutendex is pinged. It is reported
	// unavailable on /ready after 2 consecutive failures.
	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"60s"`

	// ElevenLabsAPIKey authenticates sound generation requests.
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
	// ElevenLabsURL is the base URL of the sound generation API.
	ElevenLabsURL string `env:"ELEVENLABS_URL" envDefault:"https://api.elevenlabs.io"`
	// ElevenLabsRateLimit and ElevenLabsBurst throttle generation requests,
	// which are billed per call.
	ElevenLabsRateLimit float64 `env:"ELEVENLABS_RATE_LIMIT" envDefault:"1"`
	ElevenLabsBurst     int     `env:"ELEVENLABS_BURST" envDefault:"2"`

	// AmbianceCommand is the external analyzer invocation, split on spaces,
	// e.g. "python3 python_scripts/ambiance_generator.py". The analyzer is
	// called with "--file <path>" and must print a JSON result on stdout.
	// Empty means only the built-in keyword analyzer is used.
	AmbianceCommand []string `env:"AMBIANCE_COMMAND" envSeparator:" "`
	// AmbianceTimeout bounds one analyzer run.
	AmbianceTimeout time.Duration `env:"AMBIANCE_TIMEOUT" envDefault:"60s"`
	// FallbackAudioDir holds fallback-<mood>.mp3 files served when generation fails.
	FallbackAudioDir string `env:"FALLBACK_AUDIO_DIR" envDefault:"public/audio"`
	// RedisURL switches the generated-audio cache to Redis when set,
	// e.g. "redis://localhost:6379/0".
	RedisURL string `env:"REDIS_URL"`

	// ShutdownTimeout is the maximum duration to wait for in-flight requests
	// to complete during graceful shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// IsProduction reports whether debug and test endpoints must be disabled.
func (c Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Load reads an optional dotenv file and parses configuration from
// environment variables. Variables already present in the environment take
// precedence over the file. Returns an error if a value cannot be parsed
// into the expected type.
func Load() (Config, error) {
	if err := loadDotenv(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func loadDotenv() error {
	file := ".env"
	if os.Getenv("APP_ENV") == EnvProduction {
		file = ".env.production"
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", file, err)
	}
	return nil
}
