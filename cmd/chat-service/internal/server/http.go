package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/google/wire"

	"contextrelay/cmd/chat-service/internal/conf"
	"contextrelay/cmd/chat-service/internal/domain"
	"contextrelay/cmd/chat-service/internal/service"
	pkgerrors "contextrelay/pkg/errors"
	"contextrelay/pkg/health"
	"contextrelay/pkg/monitoring"
	"contextrelay/pkg/resilience"
)

// ProviderSet 服务器层提供者集合
var ProviderSet = wire.NewSet(NewHTTPServer)

const serviceName = "chat-service"

var _ transport.Server = (*HTTPServer)(nil)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	engine  *gin.Engine
	server  *http.Server
	service *service.ChatService
	health  *health.HealthChecker
	logger  log.Logger
}

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(c *conf.Server, svc *service.ChatService, checker *health.HealthChecker, logger log.Logger) *HTTPServer {
	if c.Mode != "" {
		gin.SetMode(c.Mode)
	}
	engine := gin.New()

	s := &HTTPServer{
		engine:  engine,
		service: svc,
		health:  checker,
		logger:  logger,
		// 流式响应没有写超时
		server: &http.Server{
			Addr:              c.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	s.registerMiddleware()
	s.registerRoutes(c.RateLimit)

	return s
}

// registerMiddleware 注册中间件
func (s *HTTPServer) registerMiddleware() {
	// 恢复中间件（必须最先）
	s.engine.Use(RecoveryMiddleware(s.logger))
	s.engine.Use(CORSMiddleware())
	s.engine.Use(TracingMiddleware(serviceName))
	s.engine.Use(LoggingMiddleware(s.logger))
	s.engine.Use(monitoring.GinMiddleware(serviceName))
}

// registerRoutes 注册路由
func (s *HTTPServer) registerRoutes(rl conf.RateLimit) {
	api := s.engine.Group("/api/v1")
	if rl.PerSecond > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = int(rl.PerSecond) + 1
		}
		api.Use(RateLimitMiddleware(resilience.NewKeyedLimiter(burst, rl.PerSecond, 0)))
	}

	api.POST("/chat/stream", s.relay)

	sessions := api.Group("/sessions")
	{
		sessions.POST("", s.createSession)
		sessions.GET("/:id", s.getSession)
		sessions.DELETE("/:id", s.resetSession)
		sessions.POST("/:id/messages", s.sendMessage)
		sessions.GET("/:id/stats", s.getStats)
	}

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	})
	s.engine.GET("/ready", s.ready)
	s.engine.GET("/metrics", monitoring.Handler())
}

// ready 就绪检查，任一依赖不健康返回 503
func (s *HTTPServer) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	results := s.health.Check(ctx)
	status := health.Overall(results)

	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": results,
	})
}

// relay 无状态流式转发
func (s *HTTPServer) relay(c *gin.Context) {
	var req struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		relayError(c, pkgerrors.NewBadRequest("Invalid request body"))
		return
	}

	frames, err := s.service.Relay(c.Request.Context(), req.Messages)
	if err != nil {
		relayError(c, err)
		return
	}

	streamFrames(c, frames)
}

// createSession 创建会话
func (s *HTTPServer) createSession(c *gin.Context) {
	session, err := s.service.CreateSession(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, session)
}

// getSession 获取会话
func (s *HTTPServer) getSession(c *gin.Context) {
	session, err := s.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, session)
}

// resetSession 清空会话历史与统计
func (s *HTTPServer) resetSession(c *gin.Context) {
	session, err := s.service.ResetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, session)
}

// sendMessage 发送消息（SSE）
func (s *HTTPServer) sendMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, pkgerrors.NewBadRequest("Invalid request body"))
		return
	}

	frames, err := s.service.SendMessage(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		Error(c, err)
		return
	}

	streamFrames(c, frames)
}

// getStats 获取会话统计报告
func (s *HTTPServer) getStats(c *gin.Context) {
	report, err := s.service.GetStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, report)
}

// Handler 返回 HTTP 处理器
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Start 启动服务器，实现 transport.Server；正常关闭时返回 nil
func (s *HTTPServer) Start(context.Context) error {
	log.NewHelper(s.logger).Infof("HTTP server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭服务器
func (s *HTTPServer) Stop(ctx context.Context) error {
	log.NewHelper(s.logger).Info("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}
