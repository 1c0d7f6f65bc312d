package http_api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatusResponse reports what the process is watching and for how long.
type StatusResponse struct {
	Status  string `json:"status"`
	ChainID string `json:"chain_id"`
	Uptime  string `json:"uptime"`
}

// health is the liveness probe.
func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// status adds a little context for humans poking the deployment.
func (s *HTTPServer) status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status:  "ok",
		ChainID: s.chainID,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
	})
}
