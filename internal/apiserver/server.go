package apiserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/datamanager"
)

// Server wraps the gin engine and the run store it dispatches against,
// mirroring the teacher's api.Server-as-handler-receiver shape.
type Server struct {
	router   *gin.Engine
	runs     *RunStore
	registry prometheus.Gatherer

	dataset datamanager.Dataset
	cfg     config.BacktestConfig
}

// New builds a Server with routes registered. registry is typically
// prometheus.Gatherers{engine.Registry, datamanager.Registry} so /metrics
// reports both packages' collectors from their own package-local
// registries without double-registering a collector. dataset is the
// universe this service instance runs backtests over, loaded once at
// startup by cmd/backtestd.
func New(registry prometheus.Gatherer, dataset datamanager.Dataset, cfg config.BacktestConfig) *Server {
	s := &Server{
		router:   gin.New(),
		runs:     NewRunStore(),
		registry: registry,
		dataset:  dataset,
		cfg:      cfg,
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	s.router.POST("/runs", s.handleSubmitRun)
	s.router.GET("/runs/:id", s.handleGetRun)
}

// Handler exposes the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// runRequest is the POST /runs body: a pre-loaded dataset isn't accepted
// over HTTP (that's the CLI's job via internal/datamanager); the service
// surface here runs a previously cached universe by date range.
type runRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

func (s *Server) handleSubmitRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date: " + err.Error()})
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date: " + err.Error()})
		return
	}

	if len(s.dataset) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no dataset loaded on this server instance"})
		return
	}

	id := s.runs.Submit(s.dataset, s.cfg, start, end)
	c.JSON(http.StatusAccepted, gin.H{"run_id": id, "status": StatusQueued})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")
	run := s.runs.Get(id)
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	body := gin.H{
		"run_id":       run.ID,
		"status":       run.Status,
		"submitted_at": run.SubmittedAt,
		"start_date":   run.StartDate.Format("2006-01-02"),
		"end_date":     run.EndDate.Format("2006-01-02"),
	}
	if run.Error != "" {
		body["error"] = run.Error
	}
	if run.Report != nil {
		body["report"] = gin.H{
			"total_return_pct": run.Report.Returns.TotalReturnPct,
			"cagr_pct":         run.Report.Returns.CAGRPct,
			"sharpe_ratio":     run.Report.SharpeRatio,
			"max_drawdown_pct": run.Report.Drawdown.MaxDrawdownPct,
			"win_rate_pct":     run.Report.Trades.WinRatePct,
			"profit_factor":    run.Report.Trades.ProfitFactor,
			"total_trades":     run.Report.Trades.TotalTrades,
		}
	}
	c.JSON(http.StatusOK, body)
}
