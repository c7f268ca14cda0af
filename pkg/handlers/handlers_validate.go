package handlers

import (
	"net/http"

	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/gin-gonic/gin"
)

// ValidateAssignment dry-runs an assignment: same checks as create, nothing
// stored. Pass ?id= to validate an update of an existing assignment.
func (h *Handler) ValidateAssignment(c *gin.Context) {
	var in models.AssignmentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	id, _, err := queryID(c, "id")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	_, conflicts, msg := h.checkAssignment(c, id, in)
	if c.IsAborted() {
		return
	}
	check := models.AssignmentCheck{Valid: msg == "" && len(conflicts) == 0, Error: msg, Conflicts: conflicts}
	if msg == "" && len(conflicts) > 0 {
		check.Error = "schedule overlaps another assignment of this worker"
	}
	ok(c, http.StatusOK, check)
}
