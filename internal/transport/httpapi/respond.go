package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/ports"
)

// respondError maps the domain error taxonomy onto HTTP statuses: validation
// 400, not-found 404, conflict 409, everything else 500 with a generic
// detail so infrastructure faults never leak storage internals.
func respondError(c *gin.Context, err error) {
	if kind, ok := workflow.KindOf(err); ok {
		status := http.StatusBadRequest
		switch kind {
		case workflow.KindNotFound:
			status = http.StatusNotFound
		case workflow.KindConflict:
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
}

// actor resolves the X-Actor header (a username) to a user. The header is
// the trust boundary here: authentication sits in front of this service.
func (s *Server) actor(c *gin.Context) (ports.User, bool) {
	username := strings.TrimSpace(c.GetHeader("X-Actor"))
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "X-Actor header is required"})
		return ports.User{}, false
	}

	user, err := s.users.GetByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "unknown actor " + username})
			return ports.User{}, false
		}
		respondError(c, err)
		return ports.User{}, false
	}
	return user, true
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid " + name})
		return 0, false
	}
	return id, true
}

// queryLimit clamps ?limit between 1 and 200, defaulting to 50.
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
