// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/yourusername/gatekeep/internal/auth"
	"github.com/yourusername/gatekeep/internal/config"
	"github.com/yourusername/gatekeep/internal/session"
	"github.com/yourusername/gatekeep/internal/users"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// ユーザーストア（MongoDB）への接続
	repo, err := setupUsers(cfg)
	if err != nil {
		log.Fatalf("Failed to set up user store: %v", err)
	}

	// セッションクッキーの発行条件（ストアと破棄用クッキーで共有する）
	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	cookieOpts := ginsessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		// GET /api/logout へのトップレベル遷移でもクッキーが送られるよう Lax にする
		SameSite: http.SameSiteLaxMode,
	}

	// セッションストア（Redis）への接続
	store, err := setupSessions(cfg, cookieOpts)
	if err != nil {
		log.Fatalf("Failed to set up session store: %v", err)
	}

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()
	router.Use(ginsessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	setupRoutes(router, repo, cfg, cookieOpts)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupUsers は MongoDB に接続し、ユーザーリポジトリを初期化します。
func setupUsers(cfg *config.Config) (*users.MongoRepository, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	repo := users.NewMongoRepository(client.Database(cfg.MongoDatabase))
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// setupSessions は Redis に接続し、サーバーサイドセッションストアを初期化します。
func setupSessions(cfg *config.Config, cookieOpts ginsessions.Options) (*session.RedisStore, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	store := session.NewRedisStore(client, []byte(cfg.SessionSecret), ttl)
	store.Options(cookieOpts)
	return store, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "gatekeep-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, repo users.Repository, cfg *config.Config, cookieOpts ginsessions.Options) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	authManager := auth.NewManager(repo, cfg.BcryptCost, cookieOpts)

	// ログイン中ユーザー（または null）を返すトップページ
	router.GET("/", authManager.LoadUser(), authManager.CurrentUser)

	api := router.Group("/api")
	{
		api.POST("/register", authManager.Register)
		api.POST("/login", authManager.Login)
		api.GET("/logout", authManager.Logout)
	}
}
