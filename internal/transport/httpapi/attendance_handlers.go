package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetops/internal/domain/workflow"
	attendanceuc "fleetops/internal/usecase/attendance"
)

func (s *Server) postCheckIn(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	result, err := s.attendance.CheckIn(c.Request.Context(), attendanceuc.CheckInInput{UserID: actor.UserID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attendance": result.Record,
		"created":    result.Created,
		"xp_awarded": result.PunctualityXPPosted,
	})
}

func (s *Server) postCheckOut(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	record, err := s.attendance.CheckOut(c.Request.Context(), attendanceuc.CheckOutInput{UserID: actor.UserID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": record})
}

func (s *Server) getAttendanceToday(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	record, err := s.attendance.Today(c.Request.Context(), actor.UserID)
	if err != nil {
		if workflow.IsNotFound(err) {
			c.JSON(http.StatusOK, gin.H{"attendance": nil})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": record})
}
