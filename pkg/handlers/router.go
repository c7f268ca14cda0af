package handlers

import (
	"net/http"

	"github.com/arnavshah/attendance-api-go/pkg/session"
	"github.com/gin-gonic/gin"
)

const (
	admin  = session.RoleAdmin
	area   = session.RoleArea
	worker = session.RoleWorker
)

// NewRouter builds the gin engine with every route under /api
func NewRouter(h *Handler) *gin.Engine {
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), h.RequestID())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Geofenced Attendance API",
			"version": "1.0.0",
		})
	})

	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.POST("/admin/login", h.AdminLogin)
	api.POST("/supervisors/login", h.SupervisorLogin)
	api.POST("/workers/login", h.WorkerLogin)

	authed := api.Group("")
	authed.Use(h.AuthMiddleware())
	{
		authed.GET("/me", h.Me)
		authed.GET("/admin/me", h.RequireRole(admin), h.Me)

		areas := authed.Group("/areas", h.RequireRole(admin))
		areas.GET("", h.ListAreas)
		areas.GET("/:id", h.GetArea)
		areas.POST("", h.CreateArea)
		areas.PUT("/:id", h.UpdateArea)
		areas.DELETE("/:id", h.DeleteArea)

		sups := authed.Group("/supervisors", h.RequireRole(admin))
		sups.GET("", h.ListSupervisors)
		sups.GET("/area/:areaId", h.ListSupervisorsByArea)
		sups.GET("/:id", h.GetSupervisor)
		sups.POST("", h.CreateSupervisor)
		sups.PUT("/:id", h.UpdateSupervisor)
		sups.DELETE("/:id", h.DeleteSupervisor)

		roles := authed.Group("/roles", h.RequireRole(admin, area))
		roles.GET("", h.ListRoles)
		roles.GET("/area/:areaId", h.ListRolesByArea)
		roles.POST("", h.CreateRole)
		roles.PUT("/:id", h.UpdateRole)
		roles.DELETE("/:id", h.DeleteRole)

		workers := authed.Group("/workers", h.RequireRole(admin, area))
		workers.GET("", h.ListWorkers)
		workers.GET("/area/:areaId", h.ListWorkersByArea)
		workers.GET("/supervisor/:supervisorId", h.ListWorkersBySupervisor)
		workers.GET("/:id", h.GetWorker)
		workers.POST("", h.CreateWorker)
		workers.POST("/import", h.ImportWorkers)
		workers.PUT("/:id", h.UpdateWorker)
		workers.DELETE("/:id", h.DeleteWorker)

		zones := authed.Group("/zones")
		zones.GET("", h.ListZones)
		zones.GET("/:id", h.GetZone)
		zones.POST("", h.RequireRole(admin), h.CreateZone)
		zones.PUT("/:id", h.RequireRole(admin), h.UpdateZone)
		zones.DELETE("/:id", h.RequireRole(admin), h.DeleteZone)

		asg := authed.Group("/assignments")
		asg.GET("", h.ListAssignments)
		asg.GET("/:id", h.GetAssignment)
		asg.GET("/:id/eligibility", h.GetEligibility)
		asg.POST("", h.RequireRole(admin, area), h.CreateAssignment)
		asg.POST("/validate", h.RequireRole(admin, area), h.ValidateAssignment)
		asg.PUT("/:id", h.RequireRole(admin, area), h.UpdateAssignment)
		asg.DELETE("/:id", h.RequireRole(admin, area), h.DeleteAssignment)

		att := authed.Group("/attendance")
		att.GET("", h.ListAttendance)
		att.GET("/summary", h.GetSummary)
		att.GET("/export", h.RequireRole(admin, area), h.ExportAttendance)
		att.POST("", h.RequireRole(worker), h.CreateMark)
	}

	return r
}
