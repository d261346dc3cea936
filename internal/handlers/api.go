package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"property-search/internal/apiclient"
	"property-search/internal/detail"
	"property-search/internal/logging"
	"property-search/internal/netstatus"
	"property-search/internal/ratelimit"
	"property-search/internal/search"
)

// APIHandler serves the JSON endpoints
type APIHandler struct {
	client  Backend
	monitor *netstatus.Monitor
	breaker *apiclient.Breaker
	limiter *ratelimit.RateLimiter
}

// NewAPIHandler creates a new API handler. monitor, breaker and limiter may be nil.
func NewAPIHandler(client Backend, monitor *netstatus.Monitor, breaker *apiclient.Breaker, limiter *ratelimit.RateLimiter) *APIHandler {
	return &APIHandler{client: client, monitor: monitor, breaker: breaker, limiter: limiter}
}

// GetProperties searches properties with the navigable URL parameters plus skip/limit
func (h *APIHandler) GetProperties(c *gin.Context) {
	form := search.FormFromQuery(c.Request.URL.Query())
	if err := form.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search parameters", "fields": fieldErrors(err)})
		return
	}

	filters := form.Filters()
	if skipStr := c.Query("skip"); skipStr != "" {
		if skip, parseErr := strconv.Atoi(skipStr); parseErr == nil && skip >= 0 {
			filters.Skip = &skip
		}
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, parseErr := strconv.Atoi(limitStr); parseErr == nil && limit > 0 {
			filters.Limit = &limit
		}
	}

	properties, err := h.client.ListProperties(c.Request.Context(), filters)
	if err != nil {
		logging.FromContext(c.Request.Context()).Error("api search failed", "error", err)
		c.JSON(upstreamStatus(err), gin.H{"error": search.FetchErrorMessage, "detail": apiclient.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"properties": properties,
		"count":      len(properties),
		"url":        form.NavigableURL(),
	})
}

// GetProperty returns the aggregated detail of one property
func (h *APIHandler) GetProperty(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	d, err := detail.NewAggregator(h.client).Load(c.Request.Context(), id)
	if err != nil {
		if apiclient.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
			return
		}
		c.JSON(upstreamStatus(err), gin.H{"error": detail.LoadErrorMessage, "detail": apiclient.Message(err)})
		return
	}

	c.JSON(http.StatusOK, d)
}

// Health reports the front end, the last known backend state, the breaker
// and the caller's own rate limit usage
func (h *APIHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.monitor != nil {
		status := h.monitor.Status()
		resp["backend"] = status
		if !status.Online {
			resp["status"] = "degraded"
		}
	}
	if h.breaker != nil {
		isOpen, failures, total := h.breaker.GetStatus()
		resp["breaker"] = gin.H{
			"open":           isOpen,
			"failures":       failures,
			"total_requests": total,
		}
		if isOpen {
			resp["status"] = "degraded"
		}
	}
	if h.limiter != nil {
		resp["rate_limit"] = h.limiter.GetStats(c.ClientIP())
	}
	c.JSON(http.StatusOK, resp)
}

func upstreamStatus(err error) int {
	if apiclient.StatusCode(err) == http.StatusTooManyRequests {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
