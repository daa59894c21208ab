package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devpro-denny/R-25V1/internal/risk"
	"github.com/devpro-denny/R-25V1/internal/trade"
	"github.com/devpro-denny/R-25V1/pkg/db"
)

// StatsProvider exposes the daily counters; both risk manager variants
// satisfy it.
type StatsProvider interface {
	Stats() risk.DailyStats
	Halted() (bool, string)
}

// Server is the operator API: status and trade history reads, plus the one
// recovery mutation (clearing a safety halt). Trading control stays with the
// cycle loop.
type Server struct {
	Risk       risk.Manager
	Stats      StatsProvider
	Engine     *trade.Engine
	Store      *db.Database
	JWTSecret  string
	InstanceID string
	Strategy   string
	StartedAt  time.Time
}

// Router builds the gin handler.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := r.Group("/api", JWTAuth(s.JWTSecret))
	authed.GET("/status", s.handleStatus)
	authed.GET("/trades", s.handleTrades)
	authed.POST("/halt/clear", s.handleClearHalt)
	return r
}

// handleClearHalt lifts a safety halt after the operator has reviewed the
// violation that tripped it. Without this a halted instance needs a restart.
func (s *Server) handleClearHalt(c *gin.Context) {
	mgr, ok := s.Risk.(interface{ ClearHalt() })
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "halt control not supported"})
		return
	}
	mgr.ClearHalt()
	c.JSON(http.StatusOK, gin.H{"halted": false})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{
		"instance_id": s.InstanceID,
		"strategy":    s.Strategy,
		"started_at":  s.StartedAt.UTC(),
		"server_time": time.Now().UTC(),
	}

	locked := s.Risk.IsTradeActive()
	resp["trade_lock_active"] = locked
	if info, ok := s.Risk.ActiveTradeInfo(); ok {
		resp["locked_symbol"] = info.Symbol
		resp["locked_contract_id"] = info.ContractID
		resp["locked_since"] = info.OpenedAt.UTC()
	}

	if s.Stats != nil {
		stats := s.Stats.Stats()
		halted, haltReason := s.Stats.Halted()
		resp["daily"] = gin.H{
			"date":               stats.Date,
			"trades":             stats.Trades,
			"pnl":                stats.PnL,
			"wins":               stats.Wins,
			"losses":             stats.Losses,
			"consecutive_losses": stats.ConsecutiveLosses,
		}
		resp["halted"] = halted
		if halted {
			resp["halt_reason"] = haltReason
		}
	}

	if s.Engine != nil {
		pos := s.Engine.Position()
		resp["position_state"] = pos.State.String()
		if pos.State == trade.StateOpen || pos.State == trade.StateClosing {
			resp["position"] = gin.H{
				"symbol":        pos.Symbol,
				"direction":     pos.Direction.String(),
				"entry_price":   pos.EntryPrice,
				"stake":         pos.Stake,
				"trailing_tier": pos.TrailingTier,
				"trailing_stop": pos.TrailingStopPrice,
				"open_time":     pos.OpenTime.UTC(),
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusOK, gin.H{"trades": []any{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	trades, err := s.Store.ListRecentTrades(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}
