package handlers

import (
	"net/http"
	"strconv"

	"github.com/arnavshah/attendance-api-go/pkg/attendance"
	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/geofence"
	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/arnavshah/attendance-api-go/pkg/schedule"
	"github.com/arnavshah/attendance-api-go/pkg/session"
	"github.com/gin-gonic/gin"
)

func clockString(t *schedule.Clock) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

func assignmentResponse(a *database.Assignment) models.AssignmentResponse {
	r := models.AssignmentResponse{
		ID:        a.ID,
		WorkerID:  a.WorkerID,
		ZoneID:    a.ZoneID,
		CreatorID: a.CreatorID,
		Days:      a.Days,
		Notes:     a.Notes,
	}
	if s, err := a.Schedule(); err == nil {
		r.EntryTime = s.Entry.String()
		r.ExitTime = s.Exit.String()
		r.WindowFrom = clockString(s.WindowFrom)
		r.WindowTo = clockString(s.WindowTo)
	}
	if a.Zone != nil {
		z := zoneResponse(a.Zone)
		r.Zone = &z
	}
	if a.Worker != nil {
		r.Worker = &models.WorkerSummary{ID: a.Worker.ID, Username: a.Worker.Username, FullName: a.Worker.FullName}
	}
	return r
}

// ListAssignments filters by worker_id and creator_id. Workers only ever see
// their own assignments.
func (h *Handler) ListAssignments(c *gin.Context) {
	q := h.DB.Preload("Zone").Preload("Worker").Order("id")

	workerID, hasWorker, err := queryID(c, "worker_id")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	creatorID, hasCreator, err := queryID(c, "creator_id")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	switch currentRole(c) {
	case session.RoleWorker:
		workerID, hasWorker = currentUserID(c), true
	case session.RoleArea:
		areaID, _, valid := h.supervisorArea(c)
		if !valid {
			return
		}
		q = q.Where("worker_id IN (?)", h.DB.Model(&database.Worker{}).Select("id").Where("area_id = ?", areaID))
	}
	if hasWorker {
		q = q.Where("worker_id = ?", workerID)
	}
	if hasCreator {
		q = q.Where("creator_id = ?", creatorID)
	}

	var list []database.Assignment
	if err := q.Find(&list).Error; err != nil {
		dbError(c, err, "assignments")
		return
	}
	out := make([]models.AssignmentResponse, 0, len(list))
	for i := range list {
		out = append(out, assignmentResponse(&list[i]))
	}
	ok(c, http.StatusOK, out)
}

// loadAssignment fetches an assignment visible to the caller. Workers may
// only load their own; supervisors only those of workers in their area.
func (h *Handler) loadAssignment(c *gin.Context, id uint) (*database.Assignment, bool) {
	var a database.Assignment
	if err := h.DB.Preload("Zone").Preload("Worker").First(&a, id).Error; err != nil {
		dbError(c, err, "assignment")
		return nil, false
	}
	switch currentRole(c) {
	case session.RoleWorker:
		if a.WorkerID != currentUserID(c) {
			fail(c, http.StatusForbidden, "assignment belongs to another worker")
			return nil, false
		}
	case session.RoleArea:
		if a.Worker == nil || !h.canManageArea(c, a.Worker.AreaID) {
			return nil, false
		}
	}
	return &a, true
}

func (h *Handler) GetAssignment(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	if a, found := h.loadAssignment(c, id); found {
		ok(c, http.StatusOK, assignmentResponse(a))
	}
}

// checkAssignment resolves the worker and zone of in and looks for schedule
// conflicts. It returns the parsed schedule, or a client error message.
func (h *Handler) checkAssignment(c *gin.Context, id uint, in models.AssignmentInput) (schedule.Schedule, []schedule.Conflict, string) {
	s, err := in.Schedule()
	if err != nil {
		return s, nil, err.Error()
	}

	var w database.Worker
	if err := h.DB.First(&w, in.WorkerID).Error; err != nil {
		return s, nil, "worker does not exist"
	}
	if areaID, scoped, _ := h.supervisorArea(c); scoped && w.AreaID != areaID {
		return s, nil, "worker belongs to another area"
	}
	var count int64
	h.DB.Model(&database.Zone{}).Where("id = ?", in.ZoneID).Count(&count)
	if count == 0 {
		return s, nil, "zone does not exist"
	}

	var others []database.Assignment
	h.DB.Where("worker_id = ?", in.WorkerID).Find(&others)
	existing := make([]schedule.Entry, 0, len(others))
	for _, o := range others {
		if sch, err := o.Schedule(); err == nil {
			existing = append(existing, schedule.Entry{ID: o.ID, Schedule: sch})
		}
	}
	return s, schedule.Conflicts(existing, schedule.Entry{ID: id, Schedule: s}), ""
}

func (h *Handler) saveAssignment(c *gin.Context, a *database.Assignment, in models.AssignmentInput, status int) {
	s, conflicts, msg := h.checkAssignment(c, a.ID, in)
	if c.IsAborted() {
		return
	}
	if msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	if len(conflicts) > 0 {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":     "schedule overlaps another assignment of this worker",
			"conflicts": conflicts,
		})
		return
	}

	a.WorkerID = in.WorkerID
	a.ZoneID = in.ZoneID
	a.Notes = in.Notes
	a.SetSchedule(s)
	a.Zone, a.Worker = nil, nil
	if err := h.DB.Save(a).Error; err != nil {
		dbError(c, err, "assignment")
		return
	}
	h.DB.Preload("Zone").Preload("Worker").First(a, a.ID)
	ok(c, status, assignmentResponse(a))
}

// CreateAssignment records the calling supervisor as creator
func (h *Handler) CreateAssignment(c *gin.Context) {
	var in models.AssignmentInput
	if !bindJSON(c, &in) {
		return
	}
	a := &database.Assignment{}
	if currentRole(c) == session.RoleArea {
		creator := currentUserID(c)
		a.CreatorID = &creator
	}
	h.saveAssignment(c, a, in, http.StatusCreated)
}

func (h *Handler) UpdateAssignment(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var in models.AssignmentInput
	if !bindJSON(c, &in) {
		return
	}
	a, found := h.loadAssignment(c, id)
	if !found {
		return
	}
	h.saveAssignment(c, a, in, http.StatusOK)
}

func (h *Handler) DeleteAssignment(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	a, found := h.loadAssignment(c, id)
	if !found {
		return
	}
	if err := h.DB.Delete(&database.Assignment{}, a.ID).Error; err != nil {
		dbError(c, err, "assignment")
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "assignment deleted"})
}

// todayMarks loads the marks of an assignment on the given day
func (h *Handler) todayMarks(assignmentID uint, day string) ([]attendance.Mark, error) {
	var rows []database.AttendanceMark
	if err := h.DB.Where("assignment_id = ? AND day = ?", assignmentID, day).Find(&rows).Error; err != nil {
		return nil, err
	}
	marks := make([]attendance.Mark, 0, len(rows))
	for i := range rows {
		marks = append(marks, rows[i].ToMark())
	}
	return marks, nil
}

// GetEligibility evaluates an assignment at ?lat=&lng=. Without a position
// both marks are reported as not allowed.
func (h *Handler) GetEligibility(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var pos *geofence.Point
	if c.Query("lat") != "" || c.Query("lng") != "" {
		lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
		lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
		if err1 != nil || err2 != nil {
			fail(c, http.StatusBadRequest, "lat and lng must both be numbers")
			return
		}
		pos = &geofence.Point{Lat: lat, Lng: lng}
	}

	a, found := h.loadAssignment(c, id)
	if !found {
		return
	}
	eval, err := a.ToAttendance()
	if err != nil {
		dbError(c, err, "assignment")
		return
	}
	now := h.now()
	marks, err := h.todayMarks(a.ID, attendance.DayKey(now))
	if err != nil {
		dbError(c, err, "attendance")
		return
	}
	ok(c, http.StatusOK, models.NewEligibilityResponse(a.ID, attendance.Evaluate(pos, eval, marks, now)))
}
