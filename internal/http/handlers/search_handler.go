// README: Search handlers: query updates, snapshots, live stream and ETA enrichment.
package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nearby/internal/modules/search"
	"nearby/internal/types"
)

const streamKeepAlive = 15 * time.Second

type SearchHandler struct {
	sessions Sessions
}

func NewSearchHandler(sessions Sessions) *SearchHandler {
	return &SearchHandler{sessions: sessions}
}

type setQueryReq struct {
	Query *string `json:"query"`
}

func (h *SearchHandler) SetQuery(c *gin.Context) {
	var req setQueryReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	s, ok := callerSession(c, h.sessions)
	if !ok {
		return
	}
	if err := s.Coordinator.SetQuery(*req.Query); err != nil {
		writeSearchError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, toSnapshot(s.Coordinator.Snapshot()))
}

func (h *SearchHandler) Get(c *gin.Context) {
	s, ok := callerSession(c, h.sessions)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, toSnapshot(s.Coordinator.Snapshot()))
}

// Stream pushes a "snapshot" event on every change until the client leaves
// or the session ends.
func (h *SearchHandler) Stream(c *gin.Context) {
	s, ok := callerSession(c, h.sessions)
	if !ok {
		return
	}
	snapshots, unsubscribe := s.Coordinator.Subscribe()
	defer unsubscribe()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-s.Done():
			return false
		case snap := <-snapshots:
			h.sessions.Touch(s.UserID)
			c.SSEvent("snapshot", toSnapshot(snap))
			return true
		case <-keepAlive.C:
			h.sessions.Touch(s.UserID)
			c.SSEvent("ping", "")
			return true
		}
	})
}

type regionResponse struct {
	Center       pointResponse `json:"center"`
	RadiusMeters float64       `json:"radius_meters"`
}

type enrichResponse struct {
	Result resultResponse `json:"result"`
	Region regionResponse `json:"region"`
}

// Enrich starts an ETA lookup for a result. The ETA shows up in later
// snapshots.
func (h *SearchHandler) Enrich(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing result id")
		return
	}
	s, ok := callerSession(c, h.sessions)
	if !ok {
		return
	}
	res, err := s.Coordinator.Enrich(types.ID(id))
	if err != nil {
		writeSearchError(c, err)
		return
	}
	region := search.SelectionRegion(res)
	writeJSON(c, http.StatusAccepted, enrichResponse{
		Result: toResult(res),
		Region: regionResponse{Center: toPoint(region.Center), RadiusMeters: region.RadiusMeters},
	})
}
