package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"

	"checkout-zone-backend/internal/checkout"
	"checkout-zone-backend/internal/demo"
	"checkout-zone-backend/internal/equipment"
	"checkout-zone-backend/internal/platform/db"
	"checkout-zone-backend/internal/users"
)

func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	mode := cfg.Mode
	log.Printf("[INFO] mode:%s storage:%s\n", mode, cfg.Storage.Driver)

	if cfg.Mode != "dev" && cfg.Mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}

	// ストレージ選択。memory はプロセス内完結（開発・デモ用）。
	var (
		userStore      users.Store
		equipmentStore equipment.Store
		checkoutStore  checkout.Store
	)
	switch cfg.Storage.Driver {
	case db.StorageMySQL:
		var conn *sql.DB
		conn, err = db.Connect(cfg.DB)
		if err != nil {
			panic(err)
		}
		defer conn.Close()
		log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

		userStore = users.NewMySQLStore(conn)
		equipmentStore = equipment.NewMySQLStore(conn)
		checkoutStore = checkout.NewMySQLStore(conn)
	case db.StorageMemory:
		userStore = users.NewMemoryStore()
		equipmentStore = equipment.NewMemoryStore()
		checkoutStore = checkout.NewMemoryStore()
	default:
		panic(fmt.Sprintf("unknown storage driver: %s", cfg.Storage.Driver))
	}

	userSvc := users.NewService(userStore)
	equipmentSvc := equipment.NewService(equipmentStore)
	checkoutSvc := checkout.NewService(checkoutStore, equipmentStore)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Location"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	// /api/v1
	api := r.Group("/api/v1")
	users.RegisterRoutes(api, userSvc)
	equipment.RegisterRoutes(api, equipmentSvc)
	checkout.RegisterRoutes(api, checkoutSvc, userSvc)
	if mode == "dev" {
		demo.RegisterRoutes(api, userSvc, equipmentSvc, checkoutSvc)
	}

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: r,
	}

	go func() {
		log.Printf("[INFO] listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
