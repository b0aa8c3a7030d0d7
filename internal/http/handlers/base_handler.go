// README: Base handler utilities (JSON helpers, session lookup, error mapping).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nearby/internal/http/middleware"
	"nearby/internal/modules/location"
	"nearby/internal/modules/search"
	"nearby/internal/modules/session"
	"nearby/internal/types"
)

// Sessions resolves the caller's search session.
type Sessions interface {
	Get(ctx context.Context, uid types.ID) (*session.Session, error)
	Touch(uid types.ID)
}

type errorResponse struct {
	Error string `json:"error"`
}

type pointResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type resultResponse struct {
	ID             types.ID      `json:"id"`
	ProviderID     string        `json:"provider_id,omitempty"`
	Name           string        `json:"name"`
	Address        string        `json:"address,omitempty"`
	Coordinates    pointResponse `json:"coordinates"`
	DistanceMeters float64       `json:"distance_meters"`
	ETASeconds     *float64      `json:"eta_seconds,omitempty"`
}

type snapshotResponse struct {
	Query       string           `json:"query"`
	IsSearching bool             `json:"is_searching"`
	Generation  uint64           `json:"generation"`
	Results     []resultResponse `json:"results"`
}

func toPoint(p types.Point) pointResponse {
	return pointResponse{Lat: p.Lat, Lng: p.Lng}
}

func toResult(r search.Result) resultResponse {
	out := resultResponse{
		ID:             r.ID,
		ProviderID:     r.ProviderID,
		Name:           r.Name,
		Address:        r.Address,
		Coordinates:    toPoint(r.Coordinates),
		DistanceMeters: r.DistanceMeters,
	}
	if r.ETA != nil {
		s := r.ETA.Round(time.Second).Seconds()
		out.ETASeconds = &s
	}
	return out
}

func toSnapshot(s search.Snapshot) snapshotResponse {
	results := make([]resultResponse, len(s.Results))
	for i, r := range s.Results {
		results[i] = toResult(r)
	}
	return snapshotResponse{
		Query:       s.Query,
		IsSearching: s.IsSearching,
		Generation:  s.Generation,
		Results:     results,
	}
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// callerSession loads the caller's session, writing the error response when
// that fails.
func callerSession(c *gin.Context, sessions Sessions) (*session.Session, bool) {
	uid := middleware.CallerUID(c)
	if uid == "" {
		writeError(c, http.StatusUnauthorized, "unauthenticated")
		return nil, false
	}
	s, err := sessions.Get(c.Request.Context(), types.ID(uid))
	if err != nil {
		writeSearchError(c, err)
		return nil, false
	}
	return s, true
}

func writeSearchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, search.ErrResultNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, search.ErrNoLocation):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, search.ErrStopped), errors.Is(err, session.ErrClosed):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeLocationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, location.ErrInvalidPoint), errors.Is(err, location.ErrUnknownPermission):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, location.ErrThrottled):
		writeError(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, location.ErrNotAuthorized):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
