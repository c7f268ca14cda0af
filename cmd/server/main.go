package main

import (
	"log"

	"github.com/arnavshah/attendance-api-go/pkg/auth"
	"github.com/arnavshah/attendance-api-go/pkg/config"
	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/handlers"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("could not open database: %v", err)
	}
	if err := auth.EnsureAdminExists(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Printf("could not ensure admin account: %v", err)
	}

	r := handlers.NewRouter(handlers.New(db, cfg))

	log.Printf("Server starting on port %s (timezone %s)", cfg.Port, cfg.Location)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
