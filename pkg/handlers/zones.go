package handlers

import (
	"net/http"
	"strings"

	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/gin-gonic/gin"
)

func zoneResponse(z *database.Zone) models.ZoneResponse {
	return models.ZoneResponse{
		ID:          z.ID,
		Name:        z.Name,
		Description: z.Description,
		Shape:       z.Shape(),
		CreatedAt:   z.CreatedAt,
	}
}

// ListZones returns all zones
func (h *Handler) ListZones(c *gin.Context) {
	var zones []database.Zone
	if err := h.DB.Order("name").Find(&zones).Error; err != nil {
		dbError(c, err, "zones")
		return
	}
	out := make([]models.ZoneResponse, 0, len(zones))
	for i := range zones {
		out = append(out, zoneResponse(&zones[i]))
	}
	ok(c, http.StatusOK, out)
}

func (h *Handler) GetZone(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var z database.Zone
	if err := h.DB.First(&z, id).Error; err != nil {
		dbError(c, err, "zone")
		return
	}
	ok(c, http.StatusOK, zoneResponse(&z))
}

func bindZone(c *gin.Context) (models.ZoneInput, bool) {
	var in models.ZoneInput
	if !bindJSON(c, &in) {
		return in, false
	}
	if err := in.Shape.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return in, false
	}
	return in, true
}

func (h *Handler) CreateZone(c *gin.Context) {
	in, valid := bindZone(c)
	if !valid {
		return
	}
	z := database.Zone{Name: strings.TrimSpace(in.Name), Description: in.Description}
	z.SetShape(in.Shape)
	if err := h.DB.Create(&z).Error; err != nil {
		dbError(c, err, "zone")
		return
	}
	ok(c, http.StatusCreated, zoneResponse(&z))
}

// UpdateZone replaces the name and geometry of a zone
func (h *Handler) UpdateZone(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	in, valid := bindZone(c)
	if !valid {
		return
	}
	var z database.Zone
	if err := h.DB.First(&z, id).Error; err != nil {
		dbError(c, err, "zone")
		return
	}
	z.Name = strings.TrimSpace(in.Name)
	z.Description = in.Description
	z.SetShape(in.Shape)
	if err := h.DB.Save(&z).Error; err != nil {
		dbError(c, err, "zone")
		return
	}
	ok(c, http.StatusOK, zoneResponse(&z))
}

// DeleteZone removes a zone together with its assignments and their marks
func (h *Handler) DeleteZone(c *gin.Context) {
	h.deleteByID(c, &database.Zone{}, "zone")
}
