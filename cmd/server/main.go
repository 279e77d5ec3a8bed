package main

import (
	"context"
	"log"
	"time"

	"statement-reconciliation-backend/internal/cache"
	"statement-reconciliation-backend/internal/config"
	"statement-reconciliation-backend/internal/repository"
	"statement-reconciliation-backend/internal/routes"
	"statement-reconciliation-backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := repository.Migrate(db); err != nil {
		log.Fatal("migrate: ", err)
	}

	ctx := context.Background()
	poolCache, err := cache.New(ctx, cache.Config{
		Backend:   cfg.Cache.Backend,
		TTL:       cfg.Cache.TTL,
		RedisAddr: cfg.Cache.RedisAddr,
		Password:  cfg.Cache.RedisPassword,
		DB:        cfg.Cache.RedisDB,
	})
	if err != nil {
		log.Fatal("cache: ", err)
	}
	log.Printf("Using %s cache, ttl %s", cfg.Cache.Backend, cfg.Cache.TTL)

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Tenant-ID", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	svc := services.New(db, poolCache, cfg.Reconciliation)
	routes.RegisterRoutes(r, svc, cfg.Reconciliation)

	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal(err)
	}
}
