package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ledgeruc "fleetops/internal/usecase/ledger"
)

type adjustBody struct {
	UserID      uint64 `json:"user_id" binding:"required"`
	Amount      int    `json:"amount" binding:"required"`
	Description string `json:"description" binding:"required"`
}

func (s *Server) postLedgerAdjust(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	var body adjustBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "user_id, amount and description are required"})
		return
	}

	entry, err := s.ledger.Adjust(c.Request.Context(), ledgeruc.AdjustInput{
		ActorID:     actor.UserID,
		UserID:      body.UserID,
		Amount:      body.Amount,
		Description: body.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

func (s *Server) getLedgerForUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entries, err := s.ledger.ListForUser(c.Request.Context(), id, queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) getSLAEvents(c *gin.Context) {
	events, err := s.sla.Events(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) getSLAAttempts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	attempts, err := s.sla.Attempts(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func (s *Server) getStockoutIncidents(c *gin.Context) {
	incidents, err := s.sla.Incidents(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents})
}
