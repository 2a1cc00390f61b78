// Package server exposes the scoring pipeline over REST. Handlers stay thin:
// they validate inputs, assemble the per-request pipeline (cohort, enrichment,
// engine) and shape the response; everything else lives in the domain packages.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/walletscope/txscore/internal/addr"
	"github.com/walletscope/txscore/internal/cohortcache"
	"github.com/walletscope/txscore/internal/config"
	"github.com/walletscope/txscore/internal/enrich"
	"github.com/walletscope/txscore/internal/explain"
	"github.com/walletscope/txscore/internal/explorer"
	"github.com/walletscope/txscore/internal/logging"
	"github.com/walletscope/txscore/internal/score"
)

// Server wires the domain packages behind the REST routes.
type Server struct {
	cfg       config.Config
	sources   map[string]explorer.DataSource
	engine    *score.Engine
	cache     *cohortcache.Cache
	explainer *explain.Client
}

// New builds a server over per-network data sources. cache and explainer may
// be nil; the corresponding features degrade (fresh cohorts, 503 on /explain).
func New(cfg config.Config, sources map[string]explorer.DataSource, cache *cohortcache.Cache, explainer *explain.Client) *Server {
	return &Server{
		cfg:       cfg,
		sources:   sources,
		engine:    score.NewEngine(),
		cache:     cache,
		explainer: explainer,
	}
}

// Router assembles the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())

	r.GET("/health", s.health)
	r.GET("/transactions/:network/:address", s.listTransactions)
	r.GET("/transactions/:network/:address/scores", s.scoreTransactions)
	r.POST("/explain", s.explainScores)
	return r
}

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	logger := logging.With("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resolve validates the network and address path params and returns the data
// source, or writes the error response and returns ok=false.
func (s *Server) resolve(c *gin.Context) (explorer.DataSource, string, string, bool) {
	network := c.Param("network")
	address := c.Param("address")
	ds, found := s.sources[network]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown network: " + network})
		return nil, "", "", false
	}
	if !addr.IsValid(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address: " + address})
		return nil, "", "", false
	}
	return ds, network, address, true
}

func (s *Server) txLimit(c *gin.Context) int {
	limit := s.cfg.TxLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 50 {
		limit = 50
	}
	return limit
}

func (s *Server) listTransactions(c *gin.Context) {
	ds, network, address, ok := s.resolve(c)
	if !ok {
		return
	}
	txs, err := ds.AddressTransactions(c.Request.Context(), address, s.txLimit(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "explorer lookup failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"network":      network,
		"address":      address,
		"count":        len(txs),
		"transactions": txs,
	})
}

func (s *Server) scoreTransactions(c *gin.Context) {
	ds, network, address, ok := s.resolve(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	txs, err := ds.AddressTransactions(ctx, address, s.txLimit(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "explorer lookup failed: " + err.Error()})
		return
	}

	cohort := s.cohortFor(c, ds, network)
	enricher := enrich.New(ds, s.cfg.HTTPTimeout)
	bundles := enricher.FetchBatch(ctx, txs)
	scored := s.engine.ScoreBatch(ctx, txs, bundles, cohort)

	c.JSON(http.StatusOK, gin.H{
		"network":       network,
		"address":       address,
		"count":         len(scored),
		"cohort_blocks": cohort.SampleBlocks,
		"cohort_txs":    cohort.SampleTxs,
		"transactions":  scored,
	})
}

// cohortFor serves the cohort from cache when possible, building and caching a
// fresh one otherwise. Cache failures are invisible to the caller.
func (s *Server) cohortFor(c *gin.Context, ds explorer.DataSource, network string) score.CohortStats {
	ctx := c.Request.Context()
	if stats, hit := s.cache.Get(ctx, network); hit {
		return stats
	}
	builder, err := score.NewCohortBuilder(ds, s.cfg.CohortBlocks, s.cfg.CohortTxCap)
	if err != nil {
		return score.CohortStats{}
	}
	stats := builder.Build(ctx)
	if !stats.Empty() {
		s.cache.Put(ctx, network, stats)
	}
	return stats
}

type explainRequest struct {
	Network      string                    `json:"network" binding:"required"`
	Address      string                    `json:"address" binding:"required"`
	Transactions []score.ScoredTransaction `json:"transactions" binding:"required"`
}

func (s *Server) explainScores(c *gin.Context) {
	if s.explainer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "explanation API not configured"})
		return
	}
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if !addr.IsValid(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address: " + req.Address})
		return
	}
	explanations, err := s.explainer.ExplainBatch(c.Request.Context(), req.Network, req.Address, req.Transactions)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "explanation failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"network":      req.Network,
		"address":      req.Address,
		"explanations": explanations,
	})
}
