package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/arnavshah/attendance-api-go/pkg/auth"
	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ArgumentError is a client mistake found while resolving references
type ArgumentError struct {
	msg string
}

func NewArgumentError(msg string) *ArgumentError {
	return &ArgumentError{msg}
}

func (err *ArgumentError) Error() string {
	return err.msg
}

func (h *Handler) listWorkers(c *gin.Context, scope func(*gorm.DB) *gorm.DB) {
	q := h.DB.Preload("Roles").Order("full_name")
	if scope != nil {
		q = scope(q)
	}
	var workers []database.Worker
	if err := q.Find(&workers).Error; err != nil {
		dbError(c, err, "workers")
		return
	}
	ok(c, http.StatusOK, workers)
}

// ListWorkers returns every worker an admin can see, or the caller's area
// for supervisors
func (h *Handler) ListWorkers(c *gin.Context) {
	areaID, scoped, valid := h.supervisorArea(c)
	if !valid {
		return
	}
	h.listWorkers(c, func(q *gorm.DB) *gorm.DB {
		if scoped {
			return q.Where("area_id = ?", areaID)
		}
		return q
	})
}

func (h *Handler) ListWorkersByArea(c *gin.Context) {
	areaID, valid := paramID(c, "areaId")
	if !valid || !h.canManageArea(c, areaID) {
		return
	}
	h.listWorkers(c, func(q *gorm.DB) *gorm.DB { return q.Where("area_id = ?", areaID) })
}

func (h *Handler) ListWorkersBySupervisor(c *gin.Context) {
	supID, valid := paramID(c, "supervisorId")
	if !valid {
		return
	}
	areaID, scoped, valid := h.supervisorArea(c)
	if !valid {
		return
	}
	h.listWorkers(c, func(q *gorm.DB) *gorm.DB {
		q = q.Where("supervisor_id = ?", supID)
		if scoped {
			q = q.Where("area_id = ?", areaID)
		}
		return q
	})
}

// loadWorker fetches a worker the caller is allowed to manage
func (h *Handler) loadWorker(c *gin.Context, id uint) (*database.Worker, bool) {
	var w database.Worker
	if err := h.DB.Preload("Roles").First(&w, id).Error; err != nil {
		dbError(c, err, "worker")
		return nil, false
	}
	if !h.canManageArea(c, w.AreaID) {
		return nil, false
	}
	return &w, true
}

func (h *Handler) GetWorker(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	if w, found := h.loadWorker(c, id); found {
		ok(c, http.StatusOK, w)
	}
}

// resolveWorker checks references and fills w from in
func (h *Handler) resolveWorker(tx *gorm.DB, w *database.Worker, in models.WorkerInput) error {
	var count int64
	tx.Model(&database.Area{}).Where("id = ?", in.AreaID).Count(&count)
	if count == 0 {
		return NewArgumentError("area does not exist")
	}
	if in.SupervisorID != nil {
		var s database.Supervisor
		if err := tx.First(&s, *in.SupervisorID).Error; err != nil {
			return NewArgumentError("supervisor does not exist")
		}
		if s.AreaID != in.AreaID {
			return NewArgumentError("supervisor belongs to another area")
		}
	}
	roles := []database.Role{}
	if len(in.RoleIDs) > 0 {
		if err := tx.Where("id IN ? AND area_id = ?", in.RoleIDs, in.AreaID).Find(&roles).Error; err != nil {
			return err
		}
		if len(roles) != len(uniqueIDs(in.RoleIDs)) {
			return NewArgumentError("roles must exist and belong to the worker's area")
		}
	}

	w.Username = strings.TrimSpace(in.Username)
	w.FullName = strings.TrimSpace(in.FullName)
	w.AreaID = in.AreaID
	w.SupervisorID = in.SupervisorID
	w.Roles = roles
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return errors.Wrap(err, "hash password")
		}
		w.PasswordHash = hash
	}
	return nil
}

func uniqueIDs(ids []uint) map[uint]bool {
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func (h *Handler) saveWorker(c *gin.Context, w *database.Worker, in models.WorkerInput, status int) {
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := h.resolveWorker(tx, w, in); err != nil {
			return err
		}
		roles := w.Roles
		if err := tx.Omit("Roles").Save(w).Error; err != nil {
			return err
		}
		return tx.Model(w).Association("Roles").Replace(roles)
	})
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		fail(c, http.StatusBadRequest, argErr.Error())
		return
	}
	if err != nil {
		dbError(c, err, "worker")
		return
	}
	ok(c, status, w)
}

func (h *Handler) CreateWorker(c *gin.Context) {
	var in models.WorkerInput
	if !bindJSON(c, &in) {
		return
	}
	if in.Password == "" {
		fail(c, http.StatusBadRequest, "password is required")
		return
	}
	if !h.canManageArea(c, in.AreaID) {
		return
	}
	h.saveWorker(c, &database.Worker{}, in, http.StatusCreated)
}

func (h *Handler) UpdateWorker(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var in models.WorkerInput
	if !bindJSON(c, &in) {
		return
	}
	w, found := h.loadWorker(c, id)
	if !found || !h.canManageArea(c, in.AreaID) {
		return
	}
	h.saveWorker(c, w, in, http.StatusOK)
}

func (h *Handler) DeleteWorker(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	w, found := h.loadWorker(c, id)
	if !found {
		return
	}
	if err := h.DB.Select("Roles").Delete(w).Error; err != nil {
		dbError(c, err, "worker")
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "worker deleted"})
}

// ImportWorkers creates workers from an uploaded CSV with the columns
// username,password,full_name[,area_id][,supervisor_id][,role_ids]. role_ids
// are separated by "|". Supervisors import into their own area.
func (h *Handler) ImportWorkers(c *gin.Context) {
	file, _ := c.FormFile("workers_file")
	if file == nil {
		fail(c, http.StatusBadRequest, "workers_file is required")
		return
	}
	ownArea, scoped, valid := h.supervisorArea(c)
	if !valid {
		return
	}

	f, err := file.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to open workers file")
		return
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to read workers header")
		return
	}
	cols := make(map[string]int)
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"username", "password", "full_name"} {
		if _, found := cols[required]; !found {
			fail(c, http.StatusBadRequest, "missing column "+required)
			return
		}
	}
	field := func(record []string, name string) string {
		if i, found := cols[name]; found && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	created := []database.Worker{}
	rowErrors := []gin.H{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, gin.H{"line": line, "error": err.Error()})
			continue
		}

		in := models.WorkerInput{
			Username: field(record, "username"),
			Password: field(record, "password"),
			FullName: field(record, "full_name"),
			AreaID:   ownArea,
		}
		if in.Username == "" || in.Password == "" || in.FullName == "" {
			rowErrors = append(rowErrors, gin.H{"line": line, "error": "username, password and full_name are required"})
			continue
		}
		if v := field(record, "area_id"); v != "" && !scoped {
			id, _ := strconv.ParseUint(v, 10, 64)
			in.AreaID = uint(id)
		}
		if v := field(record, "supervisor_id"); v != "" {
			id, _ := strconv.ParseUint(v, 10, 64)
			sup := uint(id)
			in.SupervisorID = &sup
		}
		for _, part := range strings.Split(field(record, "role_ids"), "|") {
			if id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64); err == nil {
				in.RoleIDs = append(in.RoleIDs, uint(id))
			}
		}

		var w database.Worker
		err = h.DB.Transaction(func(tx *gorm.DB) error {
			if err := h.resolveWorker(tx, &w, in); err != nil {
				return err
			}
			return tx.Create(&w).Error
		})
		if err != nil {
			msg := err.Error()
			if isDuplicate(err) {
				msg = fmt.Sprintf("username %q already exists", in.Username)
			}
			rowErrors = append(rowErrors, gin.H{"line": line, "error": msg})
			continue
		}
		created = append(created, w)
	}

	ok(c, http.StatusOK, gin.H{
		"created": created,
		"errors":  rowErrors,
	})
}
