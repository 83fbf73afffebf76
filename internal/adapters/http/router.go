package http

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/memoboard/internal/config"
	"github.com/dkeye/memoboard/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "client_token"

//go:embed templates/*.tmpl
var templatesFS embed.FS

var registerValidatorsOnce sync.Once

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", secure, true)
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// rateLimitKey identifies the caller by member when logged in and by
// address otherwise. The ct cookie is client controlled and is not used.
func rateLimitKey(c *gin.Context) string {
	if id, ok := CurrentIdentity(sessions.Default(c)); ok {
		return "member:" + string(id.MemberID)
	}
	return "ip:" + c.ClientIP()
}

// RateLimitMiddleware turns away clients over the limit with a flash
// message instead of an error status. It must run after the sessions
// middleware.
func RateLimitMiddleware(rl *ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)
		if rl.Allow(key) {
			c.Next()
			return
		}
		log.Warn().Str("module", "adapters.http").Str("key", key).Str("sid", c.GetString(clientTokenKey)).Str("path", c.FullPath()).Msg("rate limited")
		fail(c, sessions.Default(c), msgRateLimited)
		c.Abort()
	}
}

func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Request(route, c.Request.Method, c.Writer.Status())
	}
}

func registerValidators() error {
	var err error
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		err = v.RegisterValidation("notblank", validators.NotBlank)
	})
	return err
}

func loadTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"stamp": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05 UTC") },
	}
	return template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.tmpl")
}

// SetupRouter wires the memo pages, sessions and operational endpoints.
// The sweeper of the rate limiter stops with ctx.
func SetupRouter(ctx context.Context, cfg *config.Config, svc MemoService, m *metrics.Metrics) (*gin.Engine, error) {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := registerValidators(); err != nil {
		return nil, err
	}
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	store, err := newSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(MetricsMiddleware(m))
	r.SetHTMLTemplate(tmpl)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	h := &handlers{svc: svc}

	pages := r.Group("/")
	pages.Use(sessions.Sessions(sessionName, store))
	pages.Use(ClientTokenMiddleware(cfg.Session.Secure))

	pages.GET("/", h.home)
	pages.POST("/login", h.login)
	pages.GET("/logout", h.logout)

	memo := pages.Group("/memo")
	if cfg.RateLimit.Limit > 0 {
		rl := NewClientRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Interval)
		go sweepLoop(ctx, rl, cfg.RateLimit.Interval)
		memo.Use(RateLimitMiddleware(rl))
	}
	memo.POST("/add", h.addMemo)
	memo.POST("/update", h.updateMemo)
	memo.POST("/delete", h.deleteMemo)

	log.Info().Str("module", "adapters.http").Str("session", cfg.Session.Store).Int("rate_limit", cfg.RateLimit.Limit).Msg("router setup")
	return r, nil
}

func sweepLoop(ctx context.Context, rl *ClientRateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}
