package quotebot

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

const (
	apiHealthCheck = "/healthz"
	apiPathStatus  = "/api/status"
)

// API is a small status HTTP server: a health check endpoint for
// deployment probes and a status endpoint with runtime counters. It
// carries no mutating routes.
type API struct {
	config     *APIConfig
	httpServer *http.Server
	listener   net.Listener
	engine     *gin.Engine
	logger     *slog.Logger
	bot        *QuoteBot
}

func newAPI(q *QuoteBot, config *APIConfig) (*API, error) {
	logger := slog.New(
		tint.NewHandler(
			os.Stdout, &tint.Options{
				Level:     config.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "api")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	api := &API{
		config: config,
		engine: r,
		logger: logger,
		bot:    q,
	}

	r.Use(gin.Recovery(), api.loggingMiddleware())
	r.GET(apiHealthCheck, api.healthCheck)
	r.GET(apiPathStatus, api.status)

	api.httpServer = &http.Server{
		Addr:              config.Listen,
		Handler:           r,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return api, nil
}

func (a *API) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Debug(
			"request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (a *API) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) status(c *gin.Context) {
	deletes, edits := a.bot.snipes.Size()
	c.JSON(http.StatusOK, gin.H{
		"started_at":       a.bot.startedAt.UTC().Format(time.RFC3339),
		"uptime":           time.Since(a.bot.startedAt).String(),
		"connected":        a.bot.discord.connected.Load(),
		"guilds":           a.bot.discord.session.GuildCount(),
		"commands_handled": a.bot.metricCommandsHandled.Load(),
		"quotes_sent":      a.bot.metricQuotesSent.Load(),
		"snipe_deletes":    deletes,
		"snipe_edits":      edits,
	})
}

// Serve starts listening and blocks until the server stops.
func (a *API) Serve(ctx context.Context) error {
	if a.listener == nil {
		listenCfg := &net.ListenConfig{}
		ln, err := listenCfg.Listen(ctx, a.config.ListenNetwork, a.config.Listen)
		if err != nil {
			return err
		}
		a.listener = ln
	}
	a.logger.Info("api listening", "addr", a.listener.Addr().String())
	return a.httpServer.Serve(a.listener)
}

// Shutdown gracefully stops the HTTP server.
func (a *API) Shutdown(ctx context.Context) error {
	if a.httpServer == nil {
		return nil
	}
	err := a.httpServer.Shutdown(ctx)
	if err != nil {
		a.logger.Warn("error shutting down api server", tint.Err(err))
	}
	return err
}
