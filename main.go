package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/reviewhub/backend/internal/client"
	"github.com/reviewhub/backend/internal/config"
	"github.com/reviewhub/backend/internal/db"
	"github.com/reviewhub/backend/internal/handler"
	"github.com/reviewhub/backend/internal/opaque"
	"github.com/reviewhub/backend/internal/service"
)

// @title reviewhub API
// @version 1.0
// @description Review/catalog backend with opaque identifiers and guarded sessions.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// .env가 있으면 읽고, 없으면 무시
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPostgresPool(ctx)
	if err != nil {
		fatal("postgres init failed", err)
	}
	defer pool.Close()

	repo := &db.Postgres{Pool: pool}
	if err := repo.EnsureAuthSchema(ctx); err != nil {
		fatal("auth schema init failed", err)
	}
	if err := repo.EnsureCatalogSchema(ctx); err != nil {
		fatal("catalog schema init failed", err)
	}

	codec, err := opaque.NewCodec(cfg.Opaque.Secret, opaque.DefaultRelations())
	if err != nil {
		fatal("identifier codec init failed", err)
	}

	authSvc, err := service.NewAuthService(repo, codec, cfg.Auth)
	if err != nil {
		fatal("auth service init failed", err)
	}
	if cfg.Auth.AdminUsername != "" && cfg.Auth.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			fatal("admin bootstrap failed", err)
		}
	}

	catalogSvc := service.NewCatalogService(repo)

	// 임베딩 검색은 AI_API_KEY가 있을 때만 활성화
	var searchSvc *service.SearchService
	if cfg.Embedding.APIKey != "" {
		embedClient, err := client.NewEmbeddingClient(cfg.Embedding)
		if err != nil {
			fatal("embedding client init failed", err)
		}
		if err := repo.EnsureEmbeddingSchema(ctx); err != nil {
			fatal("embedding schema init failed", err)
		}
		searchSvc = service.NewSearchService(repo, embedClient)
	}

	var oidcSvc *service.OIDCService
	if cfg.OIDC.Enabled() {
		oidcSvc, err = service.NewOIDCService(ctx, authSvc, repo, cfg.OIDC)
		if err != nil {
			fatal("oidc init failed", err)
		}
	}

	boundary := handler.NewBoundary(codec)
	authHandler := handler.NewAuthHandler(authSvc, boundary, oidcSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc, searchSvc, boundary)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.RequestLogger(logger))
	router.Use(handler.CORSMiddleware(cfg.Server.AllowedOrigins, true))

	// 건강 체크 및 문서 엔드포인트
	router.GET("/ping", handler.Ping)
	router.GET("/", handler.Root)
	router.GET("/openapi.json", handler.OpenAPIDoc)

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/config", authHandler.Config)

	if oidcSvc != nil {
		oidcHandler := handler.NewOIDCHandler(oidcSvc, authSvc)
		auth.GET("/oidc/login", oidcHandler.Begin)
		auth.GET("/oidc/callback", oidcHandler.Callback)
	}

	// 토큰이 필요한 라우트
	guarded := api.Group("")
	guarded.Use(handler.AuthMiddleware(authSvc))
	guarded.GET("/auth/me", authHandler.Me)
	guarded.POST("/auth/password", authHandler.ChangePassword)

	guarded.GET("/items", catalogHandler.ListItems)
	guarded.POST("/items", catalogHandler.CreateItem)
	guarded.GET("/items/:id", catalogHandler.GetItem)
	guarded.PUT("/items/:id", catalogHandler.UpdateItem)
	guarded.DELETE("/items/:id", catalogHandler.DeleteItem)
	guarded.POST("/items/:id/reviews", catalogHandler.CreateReview)
	guarded.GET("/reviews/:id", catalogHandler.GetReview)
	guarded.PUT("/reviews/:id", catalogHandler.UpdateReview)
	guarded.DELETE("/reviews/:id", catalogHandler.DeleteReview)

	if searchSvc != nil {
		searchHandler := handler.NewSearchHandler(searchSvc, boundary)
		guarded.GET("/search/reviews", searchHandler.SearchReviews)
	}

	logger.Info("listening", "addr", cfg.Server.Addr)
	if err := router.Run(cfg.Server.Addr); err != nil {
		fatal("server stopped", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
