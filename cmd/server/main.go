package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"imagestudio/internal/api"
	"imagestudio/internal/billing"
	"imagestudio/internal/config"
	"imagestudio/internal/llm"
	"imagestudio/internal/model"
	"imagestudio/internal/realtime"
	"imagestudio/internal/service"
	"imagestudio/internal/storage"
	"imagestudio/internal/usage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	// 初始化logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(cfg.ParseLogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise storage")
		return
	}

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise image provider")
		return
	}

	// 实时推送：配置 Redis 时跨实例广播，否则只在本进程内投递
	hub := realtime.NewHub()
	var notifier realtime.Notifier = hub
	checkers := []usage.QuotaChecker{usage.NewPlanQuota(repo)}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logrus.WithError(err).Error("failed to connect to redis")
			return
		}
		defer rdb.Close()

		bus, err := realtime.NewRedisBus(rdb, cfg.RedisChannel, hub)
		if err != nil {
			logrus.WithError(err).Error("failed to initialise realtime bus")
			return
		}
		if err := bus.StartForwarder(ctx); err != nil {
			logrus.WithError(err).Error("failed to start realtime forwarder")
			return
		}
		notifier = bus
		if cfg.RateLimitPerMinute > 0 {
			checkers = append(checkers, usage.NewRedisWindow(rdb, cfg.RateLimitPerMinute))
		}
	}

	tracker := usage.NewTracker(usage.AllOf(checkers...), repo, notifier)
	persister := service.NewMediaPersister(store, cfg.StoragePublicBaseURL)
	studio := service.NewStudioService(provider, persister, repo, tracker, notifier)
	account := service.NewAccountService(repo, persister, notifier)

	opts := api.Options{
		Studio:   studio,
		Account:  account,
		Verifier: billing.NewVerifier(cfg.StripeWebhookSecret),
		Hub:      hub,
	}
	if strings.TrimSpace(cfg.StripeSecretKey) != "" {
		gateway, err := billing.NewStripeGateway(cfg.StripeSecretKey)
		if err != nil {
			logrus.WithError(err).Error("failed to initialise stripe gateway")
			return
		}
		opts.Billing = billing.NewCheckout(repo, gateway)
		opts.Webhooks = billing.NewReconciler(repo, gateway, notifier)
	} else {
		logrus.Warn("STRIPE_SECRET_KEY not set, billing endpoints disabled")
	}

	httpHandler, err := api.NewHTTPHandler(cfg, repo, opts)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	httpHandler.RegisterRoutes(r)

	if localProvider, ok := store.(storage.LocalBaseDirProvider); ok {
		publicPrefix := storage.NormalisePublicBase(cfg.StoragePublicBaseURL)
		if !strings.HasPrefix(publicPrefix, "http://") && !strings.HasPrefix(publicPrefix, "https://") {
			r.Static(publicPrefix, localProvider.LocalBaseDir())
		}
	}

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logrus.WithFields(logrus.Fields{
		"host":     serverHost,
		"provider": provider.Name(),
	}).Info("服务器启动")

	// 创建HTTP服务器，写超时需要覆盖 SSE 长连接和较慢的图像生成
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 900 * time.Second,
		IdleTimeout:  1200 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("服务器关闭超时")
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Error("服务器启动失败")
	}
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Stripe-Signature")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
