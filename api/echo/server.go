package echo

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	em "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/sessiongate/config"
	gate "go.pilab.hu/sessiongate/middleware"
)

// NewHTTPServer assembles the echo router with the gateway's middleware
// chain and returns a configured http.Server ready for ListenAndServe.
// The ping function is probed by /healthz, typically mongodb.Ping.
func NewHTTPServer(cfg *config.ServerConfig, api *AuthAPI, ping func(context.Context) error) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(em.Recover())
	e.Use(requestLogger())
	e.Use(gate.Gatekeeper(gate.DefaultGatekeeperConfig(cfg.CookieName)))

	api.RegisterRoutes(e)

	e.GET("/healthz", healthHandler(ping))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func healthHandler(ping func(context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

// requestLogger tags every request with an id and logs the outcome. The
// id is echoed back so clients can quote it in bug reports.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			log.Info().
				Str("requestID", requestID).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remoteIP", c.RealIP()).
				Msg("request")
			return err
		}
	}
}
