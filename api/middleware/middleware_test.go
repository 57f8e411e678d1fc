package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ddevcap/storia/api/middleware"
	"github.com/ddevcap/storia/config"
	"github.com/ddevcap/storia/session"
	"github.com/ddevcap/storia/store"
)

var _ = Describe("ClientIP", func() {
	It("ignores X-Forwarded-For when the engine trusts no proxies", func() {
		r := gin.New()
		_ = r.SetTrustedProxies(nil)
		var got string
		r.GET("/", func(c *gin.Context) {
			got = middleware.ClientIP(c)
			c.Status(http.StatusOK)
		})

		serve(r, http.MethodGet, "/", fromIP("5.6.7.8"), func(req *http.Request) {
			req.Header.Set("X-Forwarded-For", "1.2.3.4")
		})
		Expect(got).To(Equal("5.6.7.8"))
	})

	It("trusts X-Forwarded-For from a trusted proxy", func() {
		r := gin.New()
		_ = r.SetTrustedProxies([]string{"5.6.7.8"})
		var got string
		r.GET("/", func(c *gin.Context) {
			got = middleware.ClientIP(c)
			c.Status(http.StatusOK)
		})

		serve(r, http.MethodGet, "/", fromIP("5.6.7.8"), func(req *http.Request) {
			req.Header.Set("X-Forwarded-For", "1.2.3.4")
		})
		Expect(got).To(Equal("1.2.3.4"))
	})
})

var _ = Describe("RequireAuth", func() {
	It("lets a loaded user through", func() {
		r := gin.New()
		r.GET("/profile", func(c *gin.Context) {
			c.Set(middleware.ContextKeyUser, &store.User{ID: 1})
		}, middleware.RequireAuth(), func(c *gin.Context) {
			Expect(middleware.User(c).ID).To(BeEquivalentTo(1))
			c.Status(http.StatusOK)
		})

		Expect(serve(r, http.MethodGet, "/profile").Code).To(Equal(http.StatusOK))
	})

	It("rejects anonymous requests with 401", func() {
		r := gin.New()
		r.GET("/profile", middleware.RequireAuth(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := serve(r, http.MethodGet, "/profile")
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(MatchJSON(`{"error":"Unauthorized"}`))
	})
})

var _ = Describe("NonProduction", func() {
	build := func(env string) *gin.Engine {
		r := gin.New()
		r.GET("/api/debug/env", middleware.NonProduction(config.Config{AppEnv: env}), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return r
	}

	It("allows debug endpoints outside production", func() {
		Expect(serve(build("development"), http.MethodGet, "/api/debug/env").Code).To(Equal(http.StatusOK))
	})

	It("returns 403 in production", func() {
		w := serve(build(config.EnvProduction), http.MethodGet, "/api/debug/env")
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(w.Body.String()).To(ContainSubstring("disabled in production"))
	})
})

var dbSeq atomic.Int32

var _ = Describe("LoadUser", func() {
	var (
		r      *gin.Engine
		sm     *session.Manager
		users  *store.Users
		cookie *http.Cookie
		ada    *store.User
	)

	BeforeEach(func() {
		db, err := store.Open(fmt.Sprintf("file:middleware_test_%d?mode=memory&cache=shared", dbSeq.Add(1)))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)
		users = db.Users()

		sm, err = session.New(db.SQL(), config.Config{SessionLifetime: time.Hour})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(sm.Stop)

		ada, err = users.Create(context.Background(), "Ada", "ada@example.com", "hash")
		Expect(err).NotTo(HaveOccurred())

		r = gin.New()
		r.Use(sm.LoadAndSave(), middleware.LoadUser(sm, users))
		r.POST("/login", func(c *gin.Context) {
			Expect(sm.Login(c.Request.Context(), ada)).To(Succeed())
			c.Status(http.StatusOK)
		})
		r.GET("/whoami", func(c *gin.Context) {
			if u := middleware.User(c); u != nil {
				c.String(http.StatusOK, u.Email)
				return
			}
			c.String(http.StatusOK, "anonymous")
		})

		for _, ck := range serve(r, http.MethodPost, "/login").Result().Cookies() {
			if ck.Name == session.CookieName {
				cookie = ck
			}
		}
		Expect(cookie).NotTo(BeNil())
	})

	It("loads the session's user", func() {
		w := serve(r, http.MethodGet, "/whoami", func(req *http.Request) { req.AddCookie(cookie) })
		Expect(w.Body.String()).To(Equal("ada@example.com"))
	})

	It("treats requests without a session as anonymous", func() {
		Expect(serve(r, http.MethodGet, "/whoami").Body.String()).To(Equal("anonymous"))
	})
})

var _ = Describe("LoginLimiter", func() {
	build := func(maxAttempts int) (*gin.Engine, *middleware.LoginLimiter) {
		l := middleware.NewLoginLimiter(config.Config{
			LoginMaxAttempts: maxAttempts,
			LoginWindow:      time.Minute,
			LoginBanDuration: time.Minute,
		})
		DeferCleanup(l.Stop)
		r := gin.New()
		r.POST("/login", l.Middleware(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return r, l
	}

	It("allows requests below the threshold", func() {
		r, l := build(3)
		l.RecordFailure("1.2.3.4")
		l.RecordFailure("1.2.3.4")

		Expect(serve(r, http.MethodPost, "/login", fromIP("1.2.3.4")).Code).To(Equal(http.StatusOK))
	})

	It("returns 429 once the threshold is reached", func() {
		r, l := build(3)
		for range 3 {
			l.RecordFailure("1.2.3.4")
		}

		w := serve(r, http.MethodPost, "/login", fromIP("1.2.3.4"))
		Expect(w.Code).To(Equal(http.StatusTooManyRequests))
		Expect(w.Body.String()).To(ContainSubstring("Too many failed login attempts"))
	})

	It("forgets failures after a successful login", func() {
		r, l := build(3)
		l.RecordFailure("1.2.3.4")
		l.RecordFailure("1.2.3.4")
		l.RecordSuccess("1.2.3.4")
		l.RecordFailure("1.2.3.4")

		Expect(serve(r, http.MethodPost, "/login", fromIP("1.2.3.4")).Code).To(Equal(http.StatusOK))
	})

	It("bans per IP", func() {
		r, l := build(3)
		for range 3 {
			l.RecordFailure("1.2.3.4")
		}

		Expect(serve(r, http.MethodPost, "/login", fromIP("9.9.9.9")).Code).To(Equal(http.StatusOK))
	})

	It("is disabled when LoginMaxAttempts is 0", func() {
		r, l := build(0)
		for range 100 {
			l.RecordFailure("1.2.3.4")
		}

		Expect(serve(r, http.MethodPost, "/login", fromIP("1.2.3.4")).Code).To(Equal(http.StatusOK))
	})

	It("can be stopped twice", func() {
		_, l := build(3)
		l.Stop()
		Expect(l.Stop).NotTo(Panic())
	})
})

var _ = Describe("RequestID", func() {
	build := func() *gin.Engine {
		r := gin.New()
		r.Use(middleware.RequestID(), middleware.RequestLogger())
		r.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, c.GetString(middleware.ContextKeyRequestID))
		})
		return r
	}

	It("generates an id when none is provided", func() {
		w := serve(build(), http.MethodGet, "/test")
		id := w.Header().Get("X-Request-Id")
		Expect(id).To(HaveLen(36))
		Expect(w.Body.String()).To(Equal(id))
	})

	It("reuses an incoming id", func() {
		w := serve(build(), http.MethodGet, "/test", func(req *http.Request) {
			req.Header.Set("X-Request-Id", "my-custom-id")
		})
		Expect(w.Header().Get("X-Request-Id")).To(Equal("my-custom-id"))
		Expect(w.Body.String()).To(Equal("my-custom-id"))
	})
})
