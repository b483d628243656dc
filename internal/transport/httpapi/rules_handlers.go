package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	rulesuc "fleetops/internal/usecase/rules"
)

func (s *Server) getActiveRules(c *gin.Context) {
	active, err := s.rules.GetActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active_version": active.Version,
		"cache_key":      active.CacheKey,
		"checksum":       active.Checksum,
		"config":         active.Config,
		"updated_at":     active.UpdatedAt,
	})
}

type putRulesBody struct {
	ConfigTOML string `json:"config_toml" binding:"required"`
	Reason     string `json:"reason"`
}

func (s *Server) putRulesConfig(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	var body putRulesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "config_toml is required"})
		return
	}

	result, err := s.rules.Update(c.Request.Context(), rulesuc.UpdateInput{
		DocumentTOML: []byte(body.ConfigTOML),
		Reason:       body.Reason,
		Actor:        actor.Username,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active_version": result.Version,
		"checksum":       result.Checksum,
		"changed":        result.Changed,
	})
}

type rollbackBody struct {
	TargetVersion int    `json:"target_version" binding:"required"`
	Reason        string `json:"reason"`
}

func (s *Server) postRulesRollback(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	var body rollbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "target_version is required"})
		return
	}

	result, err := s.rules.Rollback(c.Request.Context(), rulesuc.RollbackInput{
		ToVersion: body.TargetVersion,
		Reason:    body.Reason,
		Actor:     actor.Username,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active_version": result.Version,
		"source_version": result.SourceVersion,
		"checksum":       result.Checksum,
	})
}

func (s *Server) getRulesHistory(c *gin.Context) {
	versions, err := s.rules.History(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}
