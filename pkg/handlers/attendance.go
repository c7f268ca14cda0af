package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/attendance"
	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/geofence"
	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/arnavshah/attendance-api-go/pkg/session"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dayLayout = "2006-01-02"

func markResponse(m *database.AttendanceMark) models.MarkResponse {
	return models.MarkResponse{Mark: m.ToMark(), Day: m.Day}
}

// markQuery applies the shared attendance filters and the caller's scope
func (h *Handler) markQuery(c *gin.Context) (*gorm.DB, bool) {
	q := h.DB.Model(&database.AttendanceMark{})

	for _, name := range []string{"date", "from", "to"} {
		if v := c.Query(name); v != "" {
			if _, err := time.Parse(dayLayout, v); err != nil {
				fail(c, http.StatusBadRequest, "invalid "+name+", expected YYYY-MM-DD")
				return nil, false
			}
		}
	}
	if v := c.Query("date"); v != "" {
		q = q.Where("attendance_marks.day = ?", v)
	}
	if v := c.Query("from"); v != "" {
		q = q.Where("attendance_marks.day >= ?", v)
	}
	if v := c.Query("to"); v != "" {
		q = q.Where("attendance_marks.day <= ?", v)
	}

	ids := map[string]uint{}
	for _, name := range []string{"worker_id", "creator_id", "assignment_id"} {
		id, has, err := queryID(c, name)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return nil, false
		}
		if has {
			ids[name] = id
		}
	}
	if id, has := ids["creator_id"]; has {
		q = q.Where("attendance_marks.assignment_id IN (?)",
			h.DB.Model(&database.Assignment{}).Select("id").Where("creator_id = ?", id))
	}
	if id, has := ids["assignment_id"]; has {
		q = q.Where("attendance_marks.assignment_id = ?", id)
	}
	workerID, hasWorker := ids["worker_id"]

	switch currentRole(c) {
	case session.RoleWorker:
		workerID, hasWorker = currentUserID(c), true
	case session.RoleArea:
		areaID, _, valid := h.supervisorArea(c)
		if !valid {
			return nil, false
		}
		q = q.Where("attendance_marks.worker_id IN (?)",
			h.DB.Model(&database.Worker{}).Select("id").Where("area_id = ?", areaID))
	}
	if hasWorker {
		q = q.Where("attendance_marks.worker_id = ?", workerID)
	}
	return q, true
}

// ListAttendance returns marks filtered by worker_id, creator_id,
// assignment_id, date, from and to
func (h *Handler) ListAttendance(c *gin.Context) {
	q, valid := h.markQuery(c)
	if !valid {
		return
	}
	var rows []database.AttendanceMark
	if err := q.Order("attendance_marks.at desc").Find(&rows).Error; err != nil {
		dbError(c, err, "attendance")
		return
	}
	out := make([]models.MarkResponse, 0, len(rows))
	for i := range rows {
		out = append(out, markResponse(&rows[i]))
	}
	ok(c, http.StatusOK, out)
}

// markStatus maps eligibility refusals onto HTTP statuses
func markStatus(err error) int {
	switch {
	case errors.Is(err, attendance.ErrOutsideZone), errors.Is(err, attendance.ErrNoPosition):
		return http.StatusForbidden
	case errors.Is(err, attendance.ErrUnknownKind):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

// CreateMark records an entry or exit for the calling worker. Eligibility is
// evaluated again here against stored marks; the unique day index settles
// concurrent duplicates.
func (h *Handler) CreateMark(c *gin.Context) {
	var in models.MarkInput
	if !bindJSON(c, &in) {
		return
	}
	a, found := h.loadAssignment(c, in.AssignmentID)
	if !found {
		return
	}
	eval, err := a.ToAttendance()
	if err != nil {
		dbError(c, err, "assignment")
		return
	}

	now := h.now()
	day := attendance.DayKey(now)
	marks, err := h.todayMarks(a.ID, day)
	if err != nil {
		dbError(c, err, "attendance")
		return
	}
	pos := geofence.Point{Lat: *in.Lat, Lng: *in.Lng}
	if err := attendance.Evaluate(&pos, eval, marks, now).Check(in.Kind); err != nil {
		fail(c, markStatus(err), err.Error())
		return
	}

	row := database.AttendanceMark{
		AssignmentID: a.ID,
		WorkerID:     a.WorkerID,
		Day:          day,
		Kind:         string(in.Kind),
		Lat:          pos.Lat,
		Lng:          pos.Lng,
		At:           now,
	}
	res := h.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		dbError(c, res.Error, "attendance")
		return
	}
	if res.RowsAffected == 0 {
		fail(c, http.StatusConflict, fmt.Sprintf("%s already marked today", in.Kind))
		return
	}

	h.RecordDay(a.WorkerID, day, in.Kind)
	ok(c, http.StatusCreated, markResponse(&row))
}

// ExportAttendance writes the filtered marks as CSV
func (h *Handler) ExportAttendance(c *gin.Context) {
	q, valid := h.markQuery(c)
	if !valid {
		return
	}
	var rows []database.AttendanceMark
	err := q.Preload("Assignment.Zone").Preload("Assignment.Worker").
		Order("attendance_marks.day, attendance_marks.at").Find(&rows).Error
	if err != nil {
		dbError(c, err, "attendance")
		return
	}

	var out strings.Builder
	writer := csv.NewWriter(&out)
	writer.Write([]string{"mark_id", "day", "kind", "at", "worker_id", "worker_username", "worker_name", "assignment_id", "zone", "lat", "lng"})
	for _, m := range rows {
		var username, name, zone string
		if m.Assignment != nil {
			if m.Assignment.Worker != nil {
				username, name = m.Assignment.Worker.Username, m.Assignment.Worker.FullName
			}
			if m.Assignment.Zone != nil {
				zone = m.Assignment.Zone.Name
			}
		}
		writer.Write([]string{
			strconv.FormatUint(uint64(m.ID), 10),
			m.Day,
			m.Kind,
			m.At.In(h.now().Location()).Format(time.RFC3339),
			strconv.FormatUint(uint64(m.WorkerID), 10),
			username,
			name,
			strconv.FormatUint(uint64(m.AssignmentID), 10),
			zone,
			strconv.FormatFloat(m.Lat, 'f', 6, 64),
			strconv.FormatFloat(m.Lng, 'f', 6, 64),
		})
	}
	writer.Flush()

	c.Header("Content-Disposition", `attachment; filename="attendance.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out.String()))
}
