// Package server exposes the answer cache over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/ragcache/pkg/budget"
	"github.com/pario-ai/ragcache/pkg/cache"
	"github.com/pario-ai/ragcache/pkg/models"
)

// SourceHeader reports which cache layer produced an answer.
const SourceHeader = "X-Ragcache-Source"

// MaxBodySize caps request bodies.
const MaxBodySize = "64K"

// Answerer is the cache facade as seen by the transport.
type Answerer interface {
	AnswerWithSource(ctx context.Context, query string) (string, cache.Source, error)
	Stats() models.TierStats
}

// Server is the ragcache HTTP front end.
type Server struct {
	listen   string
	answerer Answerer
	logger   *log.Logger
	echo     *echo.Echo
}

// New creates a Server wired to the given facade.
func New(listen string, a Answerer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		listen:   listen,
		answerer: a,
		logger:   logger,
		echo:     e,
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(MaxBodySize))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{"*"},
	}))

	e.POST("/query", s.handleQuery)
	e.GET("/stats", s.handleStats)
	e.GET("/healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// ListenAndServe starts the server and shuts it down gracefully when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("ragcache listening", "addr", s.listen)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

func (s *Server) handleQuery(c echo.Context) error {
	var req models.QueryRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return writeJSONError(c, http.StatusBadRequest, "invalid request body")
	}

	start := time.Now()
	answer, src, err := s.answerer.AnswerWithSource(c.Request().Context(), req.Question)
	if err != nil {
		code, msg := classify(err)
		s.logger.Error("query failed",
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"status", code, "err", err)
		return writeJSONError(c, code, msg)
	}

	s.logger.Info("query answered",
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		"source", src, "latency", time.Since(start))
	c.Response().Header().Set(SourceHeader, string(src))
	return c.JSON(http.StatusOK, models.QueryResponse{Answer: answer})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.answerer.Stats())
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleError renders echo's own errors (404, 405, panics) in the
// same JSON shape as handler errors.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = http.StatusText(code)
	}
	if err := writeJSONError(c, code, msg); err != nil {
		s.logger.Error("write error response", "err", err)
	}
}

// classify maps facade errors to a status code and a client-safe message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, cache.ErrMalformedInput):
		return http.StatusBadRequest, "question must be a non-empty string"
	case errors.Is(err, budget.ErrBudgetExceeded):
		return http.StatusTooManyRequests, "token budget exhausted"
	case cache.IsTimeout(err):
		return http.StatusGatewayTimeout, "answer generation timed out"
	case errors.Is(err, cache.ErrProducerFailure):
		return http.StatusBadGateway, "answer generation failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func writeJSONError(c echo.Context, code int, message string) error {
	return c.JSON(code, errorBody{Error: errorDetail{Message: message, Type: "ragcache_error", Code: code}})
}
