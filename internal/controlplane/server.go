package controlplane

import (
	"context"
	"expvar"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pipbot/gopip/internal/anchor"
	"github.com/pipbot/gopip/internal/domain"
	"github.com/pipbot/gopip/internal/journal"
	"github.com/pipbot/gopip/internal/stage"
)

var log = logrus.WithField("component", "controlplane")

// SnapshotSource 提供各品种最近一次快照
type SnapshotSource interface {
	Snapshots() []domain.PriceSnapshot
}

// Server 只读监控 + 少量运维操作的 HTTP 控制面板
type Server struct {
	addr    string
	source  SnapshotSource
	anchors *anchor.Store
	stages  *stage.Tracker
	journal *journal.Journal // 可为 nil

	srv *http.Server
}

// New 创建控制面板
func New(addr string, source SnapshotSource, anchors *anchor.Store, stages *stage.Tracker, jnl *journal.Journal) *Server {
	return &Server{addr: addr, source: source, anchors: anchors, stages: stages, journal: jnl}
}

// Router 构建路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})

	api := r.Group("/api")
	{
		api.GET("/snapshots", s.handleSnapshots)
		api.GET("/anchors", s.handleAnchors)
		api.GET("/stages", s.handleStages)
		api.GET("/orders", s.handleOrders)
		api.GET("/stage_events", s.handleStageEvents)
		// 手动归零是唯一会让档位计数在换日之外下降的操作
		api.POST("/stage/:symbol/reset", s.handleStageReset)
	}

	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	return r
}

// Start 在后台启动 HTTP 服务
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.Infof("控制面板监听 %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("控制面板退出: %v", err)
		}
	}()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleSnapshots(c *gin.Context) {
	snaps := s.source.Snapshots()
	out := make([]map[string]interface{}, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.Map())
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": out})
}

func (s *Server) handleAnchors(c *gin.Context) {
	anchors := s.anchors.All()
	out := make([]gin.H, 0, len(anchors))
	for _, a := range anchors {
		out = append(out, gin.H{
			"symbol":      a.Symbol,
			"start_price": a.StartPrice,
			"trading_day": a.TradingDay.Format("2006-01-02"),
			"anchor_time": a.AnchorTime.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"anchors": out})
}

func (s *Server) handleStages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": s.stages.All()})
}

func (s *Server) handleStageReset(c *gin.Context) {
	symbol := c.Param("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return
	}
	s.stages.Reset(symbol)
	log.Warnf("[%s] 档位计数被手动归零", symbol)
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "last_sent": 0})
}

func (s *Server) handleOrders(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"orders": []journal.OrderRow{}})
		return
	}
	limit := intQuery(c, "limit", 100)
	rows, err := s.journal.ListOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": rows})
}

func (s *Server) handleStageEvents(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"stage_events": []journal.StageEventRow{}})
		return
	}
	limit := intQuery(c, "limit", 100)
	rows, err := s.journal.ListStageEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stage_events": rows})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, ch := range v {
		if ch < '0' || ch > '9' {
			return fallback
		}
		n = n*10 + int(ch-'0')
	}
	if n <= 0 {
		return fallback
	}
	return n
}
