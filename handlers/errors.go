package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palateclub/palate/roles"
	"github.com/palateclub/palate/services"
)

// respondError maps service errors onto HTTP statuses. Unknown errors are
// logged and surfaced as 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, roles.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, roles.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, roles.ErrAlreadyMember),
		errors.Is(err, roles.ErrAlreadyRequested),
		errors.Is(err, roles.ErrAlreadyInvited),
		errors.Is(err, services.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, roles.ErrInvalidRole),
		errors.Is(err, roles.ErrWrongActionKind),
		errors.Is(err, roles.ErrInvalidHierarchy),
		errors.Is(err, roles.ErrNotAssigned),
		errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("handler error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
