package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	worksessionuc "fleetops/internal/usecase/worksession"
)

func (s *Server) postSessionPause(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := s.sessions.Pause(c.Request.Context(), worksessionuc.TimerInput{
		TicketID: id,
		ActorID:  actor.UserID,
		Origin:   originHTTP,
	})
	if err != nil {
		// Over-budget pauses commit forced resumes before failing, so the
		// error body carries what happened.
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":              result.Session,
		"budget_used_seconds":  result.BudgetUsedSeconds,
		"budget_total_seconds": result.BudgetTotalSeconds,
	})
}

func (s *Server) postSessionResume(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := s.sessions.Resume(c.Request.Context(), worksessionuc.TimerInput{
		TicketID: id,
		ActorID:  actor.UserID,
		Origin:   originHTTP,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":      result.Session,
		"auto_resumed": result.AutoResumed,
	})
}

func (s *Server) postSessionStop(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	session, err := s.sessions.Stop(c.Request.Context(), worksessionuc.TimerInput{
		TicketID: id,
		ActorID:  actor.UserID,
		Origin:   originHTTP,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (s *Server) getSessionHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	transitions, err := s.sessions.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transitions": transitions})
}
