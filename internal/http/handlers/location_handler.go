// README: Location handlers for the caller's session: permission prompt, refresh and state.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type LocationHandler struct {
	sessions Sessions
}

func NewLocationHandler(sessions Sessions) *LocationHandler {
	return &LocationHandler{sessions: sessions}
}

type sampleResponse struct {
	pointResponse
	RecordedAt time.Time `json:"recorded_at"`
}

type locationResponse struct {
	Permission string          `json:"permission"`
	Sample     *sampleResponse `json:"sample"`
}

func (h *LocationHandler) Get(c *gin.Context) {
	s, ok := callerSession(c, h.sessions)
	if !ok {
		return
	}
	resp := locationResponse{Permission: string(s.Source.PermissionState())}
	if sample, ok := s.Source.CurrentSample(); ok {
		resp.Sample = &sampleResponse{pointResponse: toPoint(sample.Point), RecordedAt: sample.RecordedAt}
	}
	writeJSON(c, http.StatusOK, resp)
}

// RequestAccess asks the device to prompt for permission when it has not
// been decided yet.
func (h *LocationHandler) RequestAccess(c *gin.Context) {
	s, ok := callerSession(c, h.sessions)
	if !ok {
		return
	}
	if err := s.Source.RequestAccess(c.Request.Context()); err != nil {
		writeLocationError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, gin.H{"permission": s.Source.PermissionState()})
}

func (h *LocationHandler) Refresh(c *gin.Context) {
	s, ok := callerSession(c, h.sessions)
	if !ok {
		return
	}
	if err := s.Source.BeginAcquisition(); err != nil {
		writeLocationError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, gin.H{"status": "acquiring"})
}
