package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"messenger/internal/cache"
	"messenger/internal/database"
	"messenger/internal/gateway"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *database.Database
	cache  *cache.RedisCache
	log    *zap.Logger
}

func NewServer(
	gw *gateway.Gateway,
	db *database.Database,
	redis *cache.RedisCache,
	metrics prometheus.Gatherer,
	admitRatePerSec int,
	log *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(Logger(log))
	router.Use(RateLimitMiddleware(admitRatePerSec))

	server := &Server{
		router: router,
		db:     db,
		cache:  redis,
		log:    log,
	}
	server.setupRoutes(gw, metrics)
	return server
}

func (s *Server) setupRoutes(gw *gateway.Gateway, metrics prometheus.Gatherer) {
	s.router.GET("/ws", gw.Handle)
	s.router.GET("/healthz", s.healthCheck)
	s.router.GET("/readyz", s.readyCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
}

func (s *Server) Run(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router}
	s.log.Info("listening", zap.String("addr", addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting new connections and waits out in-flight requests
// up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readyCheck verifies both backing stores answer before reporting ready.
func (s *Server) readyCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := s.db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
		return
	}

	if err := s.cache.Client.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "cache unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
