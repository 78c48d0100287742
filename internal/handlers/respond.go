package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contact-service/internal/faults"
)

var statusByCode = map[faults.Code]int{
	faults.NotAuthenticated: http.StatusUnauthorized,
	faults.CapacityExceeded: http.StatusConflict,
	faults.SelfRequest:      http.StatusBadRequest,
	faults.PeerNotFound:     http.StatusNotFound,
	faults.DuplicateContact: http.StatusConflict,
	faults.Blocked:          http.StatusConflict,
	faults.PlanForbidden:    http.StatusForbidden,
	faults.NotFound:         http.StatusNotFound,
	faults.PermissionDenied: http.StatusForbidden,
	faults.InvalidArgument:  http.StatusBadRequest,
	faults.StoreFailure:     http.StatusInternalServerError,
}

// respondError writes the tagged error as a JSON body with the HTTP
// status its code maps to. Untagged errors come out as store failures
// with a generic message.
func respondError(c *gin.Context, err error) {
	code := faults.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": faults.MessageOf(err)}})
}
