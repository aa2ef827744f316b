package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/services"
)

const (
	proxyAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	proxyAllowHeaders = "Content-Type, Authorization, X-Requested-With"
)

// ProxyHandler relays /api/proxy/tactiq/* to the transcript upstream.
type ProxyHandler struct {
	log          *logger.Logger
	proxyService services.ProxyService
}

func NewProxyHandler(log *logger.Logger, proxyService services.ProxyService) *ProxyHandler {
	return &ProxyHandler{log: log.With("handler", "ProxyHandler"), proxyService: proxyService}
}

func setProxyCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", proxyAllowMethods)
	c.Header("Access-Control-Allow-Headers", proxyAllowHeaders)
}

func (ph *ProxyHandler) Preflight(c *gin.Context) {
	setProxyCORS(c)
	c.Header("Access-Control-Max-Age", "86400")
	c.Status(http.StatusOK)
}

func (ph *ProxyHandler) Forward(c *gin.Context) {
	setProxyCORS(c)
	resp, err := ph.proxyService.Forward(
		c.Request.Context(),
		c.Request.Method,
		c.Param("path"),
		c.Request.URL.RawQuery,
		c.Request.Header,
		c.Request.Body,
	)
	if err != nil {
		ph.log.Error("Proxy error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Proxy request failed", "message": err.Error()})
		return
	}
	c.Header("Access-Control-Expose-Headers", "*")
	c.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
}
