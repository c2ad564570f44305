package statusapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/syncpair/syncpair/internal/daemon"
	"github.com/syncpair/syncpair/internal/version"
)

// HealthResponse is the unauthenticated liveness probe body.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is the full daemon view: build identity plus every
// pairing's current state.
type StatusResponse struct {
	Status    string              `json:"status"`
	Timestamp string              `json:"timestamp"`
	Version   string              `json:"version"`
	Revision  string              `json:"revision"`
	BuildDate string              `json:"buildDate"`
	Pairs     []daemon.PairStatus `json:"pairs"`
}

func (s *Server) healthz(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, &HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) status(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, &StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
		Revision:  version.Revision,
		BuildDate: version.BuildDate,
		Pairs:     s.registry.Snapshot(),
	})
}
