package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"vidyavichar/middleware"
	"vidyavichar/models"
	"vidyavichar/services"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindInvalidArgument, services.KindConflict:
		return http.StatusBadRequest
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the failure and writes it as {message}.
func respondError(c *gin.Context, action string, err error) {
	kind := services.KindOf(err)
	status := statusFor(kind)
	log.Printf("%s %s %s: %s failed (%d %s): %v", c.Request.Method, c.Request.URL.Path, c.ClientIP(), action, status, kind, err)
	c.JSON(status, gin.H{"message": err.Error()})
}

func respondBindError(c *gin.Context, action string, err error) {
	log.Printf("%s %s: %s: invalid request body: %v", c.Request.Method, c.Request.URL.Path, action, err)
	c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
}

// currentPrincipal aborts with 401 when the request carries no principal.
func currentPrincipal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return models.Principal{}, false
	}
	return p, true
}
