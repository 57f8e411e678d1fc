package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ddevcap/storia/ambiance"
	"github.com/ddevcap/storia/api/handler"
	"github.com/ddevcap/storia/api/middleware"
	"github.com/ddevcap/storia/cache"
	"github.com/ddevcap/storia/config"
	"github.com/ddevcap/storia/gutendex"
	"github.com/ddevcap/storia/paginator"
	"github.com/ddevcap/storia/session"
	"github.com/ddevcap/storia/store"
)

// Deps are the long-lived services the router hands to its handlers. main
// owns their lifecycle.
type Deps struct {
	Config    config.Config
	DB        *store.DB
	Sessions  *session.Manager
	Cache     *cache.Store
	Gutendex  *gutendex.Client
	Paginator *paginator.Paginator
	Ambiance  *ambiance.Service
}

// corsMiddleware allows credentialed requests from ExternalURL and
// CORSOrigins. Unknown origins receive a wildcard Allow-Origin without
// credentials.
func corsMiddleware(cfg config.Config) gin.HandlerFunc {
	allowed := buildAllowedOrigins(cfg.ExternalURL)
	for _, o := range cfg.CORSOrigins {
		allowed[strings.ToLower(strings.TrimSpace(o))] = true
	}

	handle := cors.New(cors.Config{
		AllowOriginWithContextFunc: func(*gin.Context, string) bool { return true },
		AllowMethods:               []string{"GET", "POST", "OPTIONS", "HEAD"},
		AllowHeaders:               []string{"Origin", "Content-Type", "Content-Length", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:              []string{"Content-Length", "Content-Type", "X-Detected-Mood", "X-Ambiance-Prompt", "X-Fallback-Audio", "X-Cached", "X-Error", "X-Test-Audio", middleware.RequestIDHeader},
		AllowCredentials:           true,
		MaxAge:                     24 * time.Hour,
	})

	return func(c *gin.Context) {
		handle(c)
		// cors echoes every accepted origin; downgrade unknown ones before
		// the response is written. Preflights are already answered.
		origin := c.GetHeader("Origin")
		if origin == "" || c.IsAborted() || allowed[strings.ToLower(origin)] {
			return
		}
		if c.Writer.Header().Get("Access-Control-Allow-Origin") != "" {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Writer.Header().Del("Access-Control-Allow-Credentials")
		}
	}
}

// NewRouter builds the HTTP handler. The returned func stops the background
// work the router owns.
func NewRouter(d Deps) (http.Handler, func()) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		corsMiddleware(d.Config),
		d.Sessions.LoadAndSave(),
		middleware.LoadUser(d.Sessions, d.DB.Users()),
	)

	limiter := middleware.NewLoginLimiter(d.Config)

	authH := handler.NewAuthHandler(d.DB.Users(), d.Sessions, limiter.RecordFailure, limiter.RecordSuccess)
	bookH := handler.NewBookHandler(d.Gutendex, d.Cache, d.Paginator, d.DB.Favorites())
	favH := handler.NewFavoritesHandler(d.DB.Favorites())
	musicH := handler.NewMusicHandler(d.Ambiance)
	systemH := handler.NewSystemHandler(d.Config, d.DB, d.Gutendex, d.Ambiance)

	// Probes and metrics.
	r.GET("/health", systemH.Health)
	r.GET("/ready", systemH.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/", systemH.Index)
	r.GET("/about", systemH.About)

	auth := r.Group("/auth")
	{
		auth.POST("/signup", authH.Signup)
		auth.POST("/login", limiter.Middleware(), authH.Login)
		auth.GET("/logout", authH.Logout)
		auth.POST("/logout", authH.Logout)
	}

	r.GET("/books", bookH.Books)
	r.GET("/book/:id", bookH.Book)
	r.GET("/read/:id", bookH.Read)
	r.GET("/search", bookH.Search)

	priv := r.Group("/")
	priv.Use(middleware.RequireAuth())
	{
		priv.GET("/profile", favH.Profile)
		priv.GET("/api/favorites", favH.List)
		priv.POST("/api/favorites/add", favH.Add)
		priv.POST("/api/favorites/remove", favH.Remove)
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/music/generate", musicH.Generate)
		apiGroup.POST("/music/generate-from-text", musicH.GenerateFromText)
		apiGroup.POST("/ambiance/generate", musicH.Ambiance)
		apiGroup.GET("/test", systemH.Test)
		apiGroup.GET("/test-audio", musicH.TestAudio)
		apiGroup.GET("/check-key-direct", systemH.CheckKey)
	}

	debug := r.Group("/api")
	debug.Use(middleware.NonProduction(d.Config))
	{
		debug.GET("/debug/env", systemH.DebugEnv)
		debug.GET("/test/elevenlabs", systemH.TestElevenLabs)
		debug.POST("/debug/ambiance", musicH.DebugAmbiance)
	}

	r.NoRoute(handler.NotFound)

	return r, limiter.Stop
}

// buildAllowedOrigins returns the lower-cased origin of externalURL together
// with its http/https counterpart.
func buildAllowedOrigins(externalURL string) map[string]bool {
	origins := make(map[string]bool)
	if externalURL == "" {
		return origins
	}
	parsed, err := url.Parse(externalURL)
	if err != nil || parsed.Host == "" {
		origins[strings.ToLower(strings.TrimRight(externalURL, "/"))] = true
		return origins
	}
	host := strings.ToLower(parsed.Host)
	origins[strings.ToLower(parsed.Scheme)+"://"+host] = true
	switch strings.ToLower(parsed.Scheme) {
	case "https":
		origins["http://"+host] = true
	case "http":
		origins["https://"+host] = true
	}
	return origins
}
