package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"EmberFM/cache"
	"EmberFM/config"
	"EmberFM/core/audio"
	"EmberFM/core/auth"
	"EmberFM/core/clock"
	"EmberFM/core/engagement"
	"EmberFM/core/lifecycle"
	"EmberFM/db"
	"EmberFM/logger"
	"EmberFM/model"
	"EmberFM/repository"
	"EmberFM/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	// 配置热更新：目前只动日志级别
	stopWatch, err := config.Watch(".env", func(next *config.Config) {
		logger.SetLevel(logger.LogLevel(next.LogLevel))
	})
	if err != nil {
		log.Printf("Config watcher unavailable: %v", err)
	} else {
		defer stopWatch()
	}

	auth.InitJWT(cfg.JWTSecret, cfg.JWTTTL)

	// 初始化 MinIO 客户端
	if err := storage.InitMinio(cfg); err != nil {
		log.Fatalf("Failed to initialize MinIO: %v", err)
	}

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database with GORM: %v", err)
	}
	defer db.CloseGormDB()

	// Connect to Redis
	if err := db.ConnectRedis(cfg); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer db.CloseRedis()
	log.Println("Successfully connected to Redis")

	// Initialize database schema
	if err := db.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := db.AutoMigrateModels(&model.Profile{}); err != nil {
		log.Fatalf("Failed to migrate profile model: %v", err)
	}

	userRepo := repository.NewMySQLUserRepository(db.DB)
	trackRepo := repository.NewMySQLTrackRepository(db.DB)
	profileRepo := repository.NewGormProfileRepository(db.GormDB)

	kv := cache.NewRedisKV(db.RedisClient)
	catalog := cache.NewCatalogCache(db.RedisClient)
	clk := clock.Real{}

	gateway := auth.NewGateway(userRepo)

	hub := NewEventHub()
	manager := lifecycle.NewManager(gateway, func() *lifecycle.Controller {
		return lifecycle.NewController(
			profileRepo,
			kv,
			clk,
			lifecycle.LinearRetryPolicy(cfg.ProfileRetryAttempts, cfg.ProfileRetryBackoff),
			cfg.ProfileFetchTimeout,
		)
	})
	manager.OnCreate = func(principalID string, ctrl *lifecycle.Controller) {
		ctrl.OnChange(func(state lifecycle.State) {
			hub.BroadcastTo(principalID, Event{Type: EvtLifecycleState, Data: state.String()})
		})
	}
	defer manager.Close()

	engine := engagement.NewEngine(trackRepo, catalog, clk, time.Duration(cfg.PreviewCapSeconds)*time.Second)
	engine.OnPlayback(func(snap engagement.Snapshot) {
		hub.Broadcast(Event{Type: EvtPlayback, Data: snap})
	})
	engine.OnAdvance(func(reason engagement.AdvanceReason) {
		hub.Broadcast(Event{Type: EvtAdvance, Data: string(reason)})
	})

	// 启动时预热曲目列表，空目录会放占位曲目
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := engine.Refresh(ctx); err != nil {
			log.Printf("Initial catalog refresh failed: %v", err)
		}
		cancel()
	}

	clipper := audio.NewPreviewClipper(cfg.FFmpegPath, cfg.PreviewCapSeconds)

	// 初始化处理器
	apiHandler := NewAPIHandler(cfg, gateway, manager, engine, trackRepo, catalog, clipper)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 认证相关
	router.HandleFunc("/api/auth/signup", apiHandler.SignUpHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/signin", apiHandler.SignInHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/signout", apiHandler.AuthMiddleware(apiHandler.SignOutHandler)).Methods(http.MethodPost)

	// 生命周期
	router.HandleFunc("/api/lifecycle/state", apiHandler.AuthMiddleware(apiHandler.LifecycleStateHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/lifecycle/setup/complete", apiHandler.AuthMiddleware(apiHandler.CompleteSetupHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/lifecycle/setup/skip", apiHandler.AuthMiddleware(apiHandler.SkipSetupHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/lifecycle/onboarding/complete", apiHandler.AuthMiddleware(apiHandler.CompleteOnboardingHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/lifecycle/onboarding/reset", apiHandler.AuthMiddleware(apiHandler.ResetOnboardingHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/lifecycle/retry", apiHandler.AuthMiddleware(apiHandler.RetryLifecycleHandler)).Methods(http.MethodPost)

	// 曲目与播放
	router.HandleFunc("/api/tracks", apiHandler.AuthMiddleware(apiHandler.ListTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks", apiHandler.AuthMiddleware(apiHandler.UploadTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/import", apiHandler.AuthMiddleware(apiHandler.ImportTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id}/vote", apiHandler.AuthMiddleware(apiHandler.VoteHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/load", apiHandler.AuthMiddleware(apiHandler.LoadTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/toggle", apiHandler.AuthMiddleware(apiHandler.TogglePlayPauseHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/skip", apiHandler.AuthMiddleware(apiHandler.SkipTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/session", apiHandler.AuthMiddleware(apiHandler.PlaybackSessionHandler)).Methods(http.MethodGet)

	// 事件推送
	router.HandleFunc("/api/events", apiHandler.EventsHandler(hub))

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("EmberFM server listening on %s", cfg.ServerAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// 等待退出信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited.")
}
