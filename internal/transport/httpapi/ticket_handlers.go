package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/ports"
	ticketuc "fleetops/internal/usecase/ticket"
)

const originHTTP = "http"

type createTicketBody struct {
	ItemCode        string `json:"item_code" binding:"required"`
	FlagColor       string `json:"flag_color" binding:"required"`
	SRTTotalMinutes int    `json:"srt_total_minutes" binding:"required"`
}

func (s *Server) postCreateTicket(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	var body createTicketBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "item_code, flag_color and srt_total_minutes are required"})
		return
	}

	ticket, err := s.tickets.Create(c.Request.Context(), ticketuc.CreateInput{
		ItemCode:        body.ItemCode,
		MasterID:        actor.UserID,
		FlagColor:       body.FlagColor,
		SRTTotalMinutes: body.SRTTotalMinutes,
		Origin:          originHTTP,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticket": ticket})
}

func (s *Server) listTickets(c *gin.Context) {
	filter := ports.TicketFilter{}
	if status := c.Query("status"); status != "" {
		filter.Statuses = []workflow.TicketStatus{workflow.TicketStatus(status)}
	}
	if c.Query("active") == "true" {
		filter.ActiveOnly = true
	}

	tickets, err := s.tickets.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (s *Server) getTicket(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ticket, err := s.tickets.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (s *Server) getTicketTransitions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	transitions, err := s.tickets.Transitions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transitions": transitions})
}

func (s *Server) postApproveReview(c *gin.Context) {
	s.ticketAction(c, s.tickets.ApproveReview)
}

type assignBody struct {
	TechnicianID uint64 `json:"technician_id" binding:"required"`
}

func (s *Server) postAssign(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "technician_id is required"})
		return
	}

	ticket, err := s.tickets.Assign(c.Request.Context(), ticketuc.AssignInput{
		TicketID:     id,
		TechnicianID: body.TechnicianID,
		ActorID:      actor.UserID,
		Origin:       originHTTP,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (s *Server) postStart(c *gin.Context) {
	s.ticketAction(c, s.tickets.Start)
}

func (s *Server) postToWaitingQC(c *gin.Context) {
	s.ticketAction(c, s.tickets.ToWaitingQC)
}

func (s *Server) postQCPass(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := s.tickets.QCPass(c.Request.Context(), ticketuc.ActionInput{
		TicketID: id,
		ActorID:  actor.UserID,
		Origin:   originHTTP,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticket":     result.Ticket,
		"base_xp":    result.BaseXP,
		"bonus_xp":   result.BonusXP,
		"first_pass": result.FirstPass,
	})
}

func (s *Server) postQCFail(c *gin.Context) {
	s.ticketAction(c, s.tickets.QCFail)
}

func (s *Server) ticketAction(c *gin.Context, action func(ctx context.Context, input ticketuc.ActionInput) (ports.Ticket, error)) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ticket, err := action(c.Request.Context(), ticketuc.ActionInput{
		TicketID: id,
		ActorID:  actor.UserID,
		Origin:   originHTTP,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}
