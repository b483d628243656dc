package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	payrolluc "fleetops/internal/usecase/payroll"
)

func (s *Server) getPayrollMonth(c *gin.Context) {
	view, err := s.payroll.GetMonth(c.Request.Context(), c.Param("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payroll": view.Month, "lines": view.Lines})
}

func (s *Server) postPayrollBuild(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	view, err := s.payroll.BuildMonth(c.Request.Context(), c.Param("month"), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payroll": view.Month, "lines": view.Lines})
}

func (s *Server) postPayrollClose(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	view, err := s.payroll.CloseMonth(c.Request.Context(), c.Param("month"), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payroll": view.Month, "lines": view.Lines})
}

func (s *Server) postPayrollApprove(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	view, err := s.payroll.ApproveMonth(c.Request.Context(), c.Param("month"), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payroll": view.Month, "lines": view.Lines})
}

type gateBody struct {
	Decision string `json:"decision" binding:"required"`
	Note     string `json:"note"`
}

func (s *Server) postPayrollGate(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	var body gateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "decision is required"})
		return
	}

	if err := s.payroll.DecideAllowanceGate(c.Request.Context(), payrolluc.GateInput{
		Month:     c.Param("month"),
		Decision:  body.Decision,
		DecidedBy: actor.UserID,
		Note:      body.Note,
	}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}
