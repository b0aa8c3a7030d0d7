// README: Device bridge handlers: the caller's device reports fixes and permission changes.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nearby/internal/http/middleware"
	"nearby/internal/modules/location"
	"nearby/internal/types"
)

type DeviceHandler struct {
	location *location.Service
}

func NewDeviceHandler(svc *location.Service) *DeviceHandler {
	return &DeviceHandler{location: svc}
}

type reportLocationReq struct {
	Lat        *float64   `json:"lat"`
	Lng        *float64   `json:"lng"`
	RecordedAt *time.Time `json:"recorded_at"`
}

func (h *DeviceHandler) ReportLocation(c *gin.Context) {
	var req reportLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	u := location.Update{
		DeviceID: types.ID(middleware.CallerUID(c)),
		Point:    types.Point{Lat: *req.Lat, Lng: *req.Lng},
	}
	if req.RecordedAt != nil {
		u.RecordedAt = *req.RecordedAt
	}
	if err := h.location.ReportLocation(c.Request.Context(), u); err != nil {
		writeLocationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reportPermissionReq struct {
	State string `json:"state"`
}

func (h *DeviceHandler) ReportPermission(c *gin.Context) {
	var req reportPermissionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	state, err := location.ParsePermissionState(req.State)
	if err != nil {
		writeLocationError(c, err)
		return
	}
	if err := h.location.ReportPermission(c.Request.Context(), types.ID(middleware.CallerUID(c)), state); err != nil {
		writeLocationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Prompt tells the device whether to show the OS permission prompt. A
// pending request is consumed by the read.
func (h *DeviceHandler) Prompt(c *gin.Context) {
	prompt, err := h.location.TakePrompt(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeLocationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"prompt": prompt})
}
