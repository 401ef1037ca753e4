// Package httpapi exposes the analysis workflow over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veridexlabs/veridexd/internal/analysis"
	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/logging"
	"github.com/veridexlabs/veridexd/internal/post"
	"github.com/veridexlabs/veridexd/internal/workflow"
)

// Analyzer is the workflow surface the server needs.
type Analyzer interface {
	Analyze(ctx context.Context, p post.Post) (*analysis.Result, error)
	ForceAnalyze(ctx context.Context, p post.Post) (*analysis.Result, error)
	AnalyzedByTrend(ctx context.Context, trend string, limit int) ([]*analysis.Result, error)
}

// Server serves the analysis API.
type Server struct {
	echo     *echo.Echo
	analyzer Analyzer
	log      *logging.Logger
	cfg      config.ServerConfig
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(analyzer Analyzer, cfg config.ServerConfig, log *logging.Logger) (*Server, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if log == nil {
		log = logging.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			log.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		analyzer: analyzer,
		log:      log.Named("http"),
		cfg:      cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/analyze/force", s.handleForceAnalyze)
	v1.GET("/posts/trend/:trend", s.handleTrend)
}

// AnalyzeRequest is the request body for the analyze endpoints.
type AnalyzeRequest struct {
	Text             string         `json:"text"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ImageDescription string         `json:"image_description,omitempty"`
	SocialNetwork    string         `json:"social_network,omitempty"`
	Trend            string         `json:"trend,omitempty"`
}

func (r AnalyzeRequest) post() post.Post {
	return post.Post{
		Text:             r.Text,
		Metadata:         r.Metadata,
		ImageDescription: r.ImageDescription,
		SocialNetwork:    r.SocialNetwork,
		Trend:            r.Trend,
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// TrendResponse is the response body for GET /api/v1/posts/trend/:trend.
type TrendResponse struct {
	Trend    string             `json:"trend"`
	Count    int                `json:"count"`
	Analyses []*analysis.Result `json:"analyses"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	return s.runAnalysis(c, s.analyzer.Analyze)
}

func (s *Server) handleForceAnalyze(c echo.Context) error {
	return s.runAnalysis(c, s.analyzer.ForceAnalyze)
}

func (s *Server) runAnalysis(c echo.Context, run func(context.Context, post.Post) (*analysis.Result, error)) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	result, err := run(ctx, req.post())
	if err != nil {
		if errors.Is(err, analysis.ErrEmptyPost) {
			return echo.NewHTTPError(http.StatusBadRequest, "text is required")
		}
		s.log.Error(ctx, "analysis failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "analysis failed")
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleTrend(c echo.Context) error {
	trend := c.Param("trend")
	if trend == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "trend is required")
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 500")
		}
		limit = parsed
	}

	ctx := c.Request().Context()
	results, err := s.analyzer.AnalyzedByTrend(ctx, trend, limit)
	if err != nil {
		s.log.Error(ctx, "trend lookup failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "trend lookup failed")
	}
	if results == nil {
		results = []*analysis.Result{}
	}

	return c.JSON(http.StatusOK, TrendResponse{
		Trend:    trend,
		Count:    len(results),
		Analyses: results,
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.log.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

var _ Analyzer = (*workflow.Workflow)(nil)
