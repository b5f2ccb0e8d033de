// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/voenmeh-portal/internal/auth"
	"github.com/yourusername/voenmeh-portal/internal/config"
	"github.com/yourusername/voenmeh-portal/internal/session"
	"github.com/yourusername/voenmeh-portal/internal/storage"
	"github.com/yourusername/voenmeh-portal/internal/users"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// データベース接続とマイグレーション
	db, err := storage.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// セッションストアの設定
	store, err := newSessionStore(cfg)
	if err != nil {
		log.Fatalf("Failed to init session store: %v", err)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	userRepo := users.NewPostgresRepository(db)
	setupRoutes(router, cfg, db, userRepo)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newSessionStore はセッションストアを構築します。
// SESSION_REDIS_URL が設定されていればRedisバックエンド、無ければプロセス内メモリです。
// どちらもセッション本体はサーバー側に保持し、クッキーには署名済みIDのみを載せます。
func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	secret := cfg.SessionSecret
	if secret == "" {
		// ローカル開発用フォールバック。releaseモードではconfigの検証で弾かれる。
		secret = "fallback-secret-key"
	}

	if cfg.SessionRedisURL == "" {
		return session.NewMemoryStore(cfg.SessionTTL(), []byte(secret)), nil
	}

	opts, err := redis.ParseURL(cfg.SessionRedisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	return session.NewRedisStore(rdb, cfg.SessionTTL(), []byte(secret)), nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーを返します。
// データベースに到達できなくても200で状態を報告します。
func handleHealth(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "OK",
			"database":  "DISCONNECTED",
			"message":   "Сервер работает, но база не подключена",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if err := storage.Ping(c.Request.Context(), db); err != nil {
			health["error"] = err.Error()
		} else {
			health["database"] = "CONNECTED"
			health["message"] = "Сервер и база данных работают нормально"
		}

		c.JSON(http.StatusOK, health)
	}
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, db *sql.DB, userRepo users.Repository) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/api/health", handleHealth(db))

	authManager := auth.NewManager(cfg, userRepo)

	api := router.Group("/api")
	{
		api.POST("/register", authManager.Register)
		api.POST("/login", authManager.Login)
		api.POST("/logout", authManager.Logout)

		// 保護対象のルートはここにぶら下げる
		protected := api.Group("")
		protected.Use(authManager.RequireAuth())
		{
			protected.GET("/me", authManager.Me)
		}
	}

	// API以外のパスは静的なアプリケーションシェルを返す
	router.NoRoute(staticFallback(cfg.StaticDir))
}

// staticFallback は静的ファイルを配信するハンドラーを返します。
// 該当ファイルが無いパスには index.html を返します（クライアント側ルーティング対応）。
func staticFallback(staticDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Не найдено"})
			return
		}

		// パストラバーサルを防ぐため先頭に "/" を付けてからCleanする
		requested := filepath.Join(staticDir, filepath.Clean("/"+c.Request.URL.Path))
		if info, err := os.Stat(requested); err == nil && !info.IsDir() {
			c.File(requested)
			return
		}

		c.File(filepath.Join(staticDir, "index.html"))
	}
}
