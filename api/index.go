package handler

import (
	"log"
	"net/http"

	"github.com/arnavshah/attendance-api-go/pkg/auth"
	"github.com/arnavshah/attendance-api-go/pkg/config"
	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/handlers"
	"github.com/gin-gonic/gin"
)

var (
	r       *gin.Engine
	initErr error
)

func init() {
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	db, err := database.InitDB(cfg)
	if err != nil {
		initErr = err
		return
	}
	if err := auth.EnsureAdminExists(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Printf("could not ensure admin account: %v", err)
	}
	r = handlers.NewRouter(handlers.New(db, cfg))
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	if initErr != nil {
		log.Printf("[ERR] startup: %v", initErr)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	r.ServeHTTP(w, req)
}
