package handlers

import (
	"net/http"
	"strings"

	"github.com/arnavshah/attendance-api-go/pkg/auth"
	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListAreas returns all areas
func (h *Handler) ListAreas(c *gin.Context) {
	var areas []database.Area
	if err := h.DB.Order("name").Find(&areas).Error; err != nil {
		dbError(c, err, "areas")
		return
	}
	ok(c, http.StatusOK, areas)
}

func (h *Handler) GetArea(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var area database.Area
	if err := h.DB.First(&area, id).Error; err != nil {
		dbError(c, err, "area")
		return
	}
	ok(c, http.StatusOK, area)
}

func (h *Handler) CreateArea(c *gin.Context) {
	var in models.AreaInput
	if !bindJSON(c, &in) {
		return
	}
	area := database.Area{Name: strings.TrimSpace(in.Name), Description: in.Description}
	if err := h.DB.Create(&area).Error; err != nil {
		dbError(c, err, "area")
		return
	}
	ok(c, http.StatusCreated, area)
}

func (h *Handler) UpdateArea(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var in models.AreaInput
	if !bindJSON(c, &in) {
		return
	}
	var area database.Area
	if err := h.DB.First(&area, id).Error; err != nil {
		dbError(c, err, "area")
		return
	}
	area.Name = strings.TrimSpace(in.Name)
	area.Description = in.Description
	if err := h.DB.Save(&area).Error; err != nil {
		dbError(c, err, "area")
		return
	}
	ok(c, http.StatusOK, area)
}

// DeleteArea removes an area with its staff, roles and workers
func (h *Handler) DeleteArea(c *gin.Context) {
	h.deleteByID(c, &database.Area{}, "area")
}

// deleteByID deletes one row and answers 404 when nothing matched
func (h *Handler) deleteByID(c *gin.Context, model any, what string) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	res := h.DB.Delete(model, id)
	if res.Error != nil {
		dbError(c, res.Error, what)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, http.StatusNotFound, what+" not found")
		return
	}
	ok(c, http.StatusOK, gin.H{"message": what + " deleted"})
}

func (h *Handler) areaExists(c *gin.Context, id uint) bool {
	var count int64
	h.DB.Model(&database.Area{}).Where("id = ?", id).Count(&count)
	if count == 0 {
		fail(c, http.StatusBadRequest, "area does not exist")
		return false
	}
	return true
}

// Supervisors

func (h *Handler) ListSupervisors(c *gin.Context) {
	var list []database.Supervisor
	if err := h.DB.Preload("Area").Order("full_name").Find(&list).Error; err != nil {
		dbError(c, err, "supervisors")
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *Handler) ListSupervisorsByArea(c *gin.Context) {
	areaID, valid := paramID(c, "areaId")
	if !valid {
		return
	}
	var list []database.Supervisor
	if err := h.DB.Where("area_id = ?", areaID).Order("full_name").Find(&list).Error; err != nil {
		dbError(c, err, "supervisors")
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *Handler) GetSupervisor(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var s database.Supervisor
	if err := h.DB.Preload("Area").First(&s, id).Error; err != nil {
		dbError(c, err, "supervisor")
		return
	}
	ok(c, http.StatusOK, s)
}

func (h *Handler) CreateSupervisor(c *gin.Context) {
	var in models.SupervisorInput
	if !bindJSON(c, &in) {
		return
	}
	if in.Password == "" {
		fail(c, http.StatusBadRequest, "password is required")
		return
	}
	if !h.areaExists(c, in.AreaID) {
		return
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not hash password")
		return
	}
	s := database.Supervisor{
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		AreaID:       in.AreaID,
	}
	if err := h.DB.Create(&s).Error; err != nil {
		dbError(c, err, "supervisor")
		return
	}
	ok(c, http.StatusCreated, s)
}

func (h *Handler) UpdateSupervisor(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var in models.SupervisorInput
	if !bindJSON(c, &in) {
		return
	}
	var s database.Supervisor
	if err := h.DB.First(&s, id).Error; err != nil {
		dbError(c, err, "supervisor")
		return
	}
	if !h.areaExists(c, in.AreaID) {
		return
	}
	s.Username = strings.TrimSpace(in.Username)
	s.FullName = strings.TrimSpace(in.FullName)
	s.AreaID = in.AreaID
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			fail(c, http.StatusInternalServerError, "Could not hash password")
			return
		}
		s.PasswordHash = hash
	}
	if err := h.DB.Omit("Area").Save(&s).Error; err != nil {
		dbError(c, err, "supervisor")
		return
	}
	ok(c, http.StatusOK, s)
}

func (h *Handler) DeleteSupervisor(c *gin.Context) {
	h.deleteByID(c, &database.Supervisor{}, "supervisor")
}

// Roles

func (h *Handler) ListRoles(c *gin.Context) {
	areaID, scoped, valid := h.supervisorArea(c)
	if !valid {
		return
	}
	q := h.DB.Order("name")
	if scoped {
		q = q.Where("area_id = ?", areaID)
	}
	var roles []database.Role
	if err := q.Find(&roles).Error; err != nil {
		dbError(c, err, "roles")
		return
	}
	ok(c, http.StatusOK, roles)
}

func (h *Handler) ListRolesByArea(c *gin.Context) {
	areaID, valid := paramID(c, "areaId")
	if !valid || !h.canManageArea(c, areaID) {
		return
	}
	var roles []database.Role
	if err := h.DB.Where("area_id = ?", areaID).Order("name").Find(&roles).Error; err != nil {
		dbError(c, err, "roles")
		return
	}
	ok(c, http.StatusOK, roles)
}

// canManageArea answers 403 when a supervisor reaches outside their area
func (h *Handler) canManageArea(c *gin.Context, areaID uint) bool {
	own, scoped, valid := h.supervisorArea(c)
	if !valid {
		return false
	}
	if scoped && own != areaID {
		fail(c, http.StatusForbidden, "area belongs to another supervisor")
		return false
	}
	return true
}

func (h *Handler) CreateRole(c *gin.Context) {
	var in models.RoleInput
	if !bindJSON(c, &in) {
		return
	}
	if !h.canManageArea(c, in.AreaID) || !h.areaExists(c, in.AreaID) {
		return
	}
	role := database.Role{Name: strings.TrimSpace(in.Name), AreaID: in.AreaID, Description: in.Description}
	if err := h.DB.Create(&role).Error; err != nil {
		dbError(c, err, "role")
		return
	}
	ok(c, http.StatusCreated, role)
}

func (h *Handler) UpdateRole(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var in models.RoleInput
	if !bindJSON(c, &in) {
		return
	}
	var role database.Role
	if err := h.DB.First(&role, id).Error; err != nil {
		dbError(c, err, "role")
		return
	}
	if !h.canManageArea(c, role.AreaID) || !h.canManageArea(c, in.AreaID) || !h.areaExists(c, in.AreaID) {
		return
	}
	role.Name = strings.TrimSpace(in.Name)
	role.AreaID = in.AreaID
	role.Description = in.Description
	if err := h.DB.Save(&role).Error; err != nil {
		dbError(c, err, "role")
		return
	}
	ok(c, http.StatusOK, role)
}

func (h *Handler) DeleteRole(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var role database.Role
	if err := h.DB.First(&role, id).Error; err != nil {
		dbError(c, err, "role")
		return
	}
	if !h.canManageArea(c, role.AreaID) {
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM worker_roles WHERE role_id = ?", role.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&role).Error
	})
	if err != nil {
		dbError(c, err, "role")
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "role deleted"})
}
