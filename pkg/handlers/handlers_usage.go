package handlers

import (
	"log"
	"net/http"

	"github.com/arnavshah/attendance-api-go/pkg/attendance"
	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/arnavshah/attendance-api-go/pkg/session"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordDay bumps the worker's daily counters using a single upsert
func (h *Handler) RecordDay(workerID uint, day string, kind attendance.Kind) {
	entries, exits := 0, 0
	if kind == attendance.KindExit {
		exits = 1
	} else {
		entries = 1
	}

	err := h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "worker_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"entries": gorm.Expr("worker_days.entries + ?", entries),
			"exits":   gorm.Expr("worker_days.exits + ?", exits),
		}),
	}).Create(&database.WorkerDay{
		WorkerID: workerID,
		Day:      day,
		Entries:  entries,
		Exits:    exits,
	}).Error
	if err != nil {
		log.Printf("[ERR] recording day %s for worker %d: %v", day, workerID, err)
	}
}

// GetSummary returns the last 30 days of counters for a worker. Workers get
// their own; staff pass ?worker_id=.
func (h *Handler) GetSummary(c *gin.Context) {
	workerID, hasWorker, err := queryID(c, "worker_id")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if currentRole(c) == session.RoleWorker {
		workerID, hasWorker = currentUserID(c), true
	}
	if !hasWorker {
		fail(c, http.StatusBadRequest, "worker_id is required")
		return
	}
	if currentRole(c) == session.RoleArea {
		if _, found := h.loadWorker(c, workerID); !found {
			return
		}
	}

	var days []database.WorkerDay
	if err := h.DB.Where("worker_id = ?", workerID).Order("day desc").Limit(30).Find(&days).Error; err != nil {
		dbError(c, err, "summary")
		return
	}

	resp := models.SummaryResponse{WorkerID: workerID, History: make([]models.DaySummary, 0, len(days))}
	for _, d := range days {
		resp.History = append(resp.History, models.DaySummary{Day: d.Day, Entries: d.Entries, Exits: d.Exits})
		resp.Totals.Entries += d.Entries
		resp.Totals.Exits += d.Exits
	}
	ok(c, http.StatusOK, resp)
}
