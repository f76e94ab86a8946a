package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lof_arb_api/logger"
	"lof_arb_api/models"
	"lof_arb_api/services/fundcache"
	"lof_arb_api/services/stream"
)

// FundController serves the cached arbitrage snapshot.
type FundController struct {
	cache *fundcache.Cache
	hub   *stream.Hub
}

// NewFundController creates a new fund controller.
func NewFundController(cache *fundcache.Cache, hub *stream.Hub) *FundController {
	return &FundController{cache: cache, hub: hub}
}

// GetLOF returns the current arbitrage candidates as JSON.
// GET /lof
func (fc *FundController) GetLOF(c *gin.Context) {
	rs, err := fc.cache.Get(c.Request.Context())
	if err != nil {
		// Only reachable on a cold cache with no previous snapshot.
		logger.WithComponent("api").WithError(err).Error("snapshot unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "error",
			"update_time": "",
			"count":       0,
			"data":        []models.FundRecord{},
			"message":     "fund data temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"update_time": rs.UpdateTime(),
		"count":       rs.Count(),
		"data":        rs.Records,
	})
}

// Home renders the same snapshot as an HTML table for human viewing.
// GET /
func (fc *FundController) Home(c *gin.Context) {
	rs, err := fc.cache.Get(c.Request.Context())
	if err != nil {
		logger.WithComponent("api").WithError(err).Error("snapshot unavailable")
		c.HTML(http.StatusServiceUnavailable, "index.html", gin.H{
			"error": "数据暂时不可用，请稍后再试",
		})
		return
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"updateTime": rs.UpdateTime(),
		"count":      rs.Count(),
		"records":    rs.Records,
	})
}

// Health reports service liveness and cache state.
// GET /health
func (fc *FundController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"cache":      fc.cache.State(),
		"ws_clients": fc.hub.ClientCount(),
	})
}

// Stream upgrades to a WebSocket that receives every published snapshot.
// GET /ws
func (fc *FundController) Stream(c *gin.Context) {
	fc.hub.HandleWebSocket(c.Writer, c.Request)
}
