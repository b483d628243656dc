package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetops/internal/ports"
	attendanceuc "fleetops/internal/usecase/attendance"
	ledgeruc "fleetops/internal/usecase/ledger"
	payrolluc "fleetops/internal/usecase/payroll"
	rulesuc "fleetops/internal/usecase/rules"
	slauc "fleetops/internal/usecase/sla"
	ticketuc "fleetops/internal/usecase/ticket"
	worksessionuc "fleetops/internal/usecase/worksession"
)

// Server is the HTTP front-end. It holds no business rules: every handler
// parses, resolves the actor, calls one usecase and maps the typed error.
type Server struct {
	users      ports.UserRepository
	rules      *rulesuc.Service
	ledger     *ledgeruc.Service
	attendance *attendanceuc.Service
	sessions   *worksessionuc.Service
	tickets    *ticketuc.Service
	sla        *slauc.Service
	payroll    *payrolluc.Service
}

func NewServer(
	users ports.UserRepository,
	rules *rulesuc.Service,
	ledger *ledgeruc.Service,
	attendance *attendanceuc.Service,
	sessions *worksessionuc.Service,
	tickets *ticketuc.Service,
	sla *slauc.Service,
	payroll *payrolluc.Service,
) *Server {
	return &Server{
		users:      users,
		rules:      rules,
		ledger:     ledger,
		attendance: attendance,
		sessions:   sessions,
		tickets:    tickets,
		sla:        sla,
		payroll:    payroll,
	}
}

// Router builds the gin engine with all routes mounted under /api/v1.
func (s *Server) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")

	rules := api.Group("/rules")
	{
		rules.GET("/active", s.getActiveRules)
		rules.PUT("/config", s.putRulesConfig)
		rules.POST("/rollback", s.postRulesRollback)
		rules.GET("/history", s.getRulesHistory)
	}

	attendance := api.Group("/attendance")
	{
		attendance.POST("/checkin", s.postCheckIn)
		attendance.POST("/checkout", s.postCheckOut)
		attendance.GET("/today", s.getAttendanceToday)
	}

	tickets := api.Group("/tickets")
	{
		tickets.POST("", s.postCreateTicket)
		tickets.GET("", s.listTickets)
		tickets.GET("/:id", s.getTicket)
		tickets.GET("/:id/transitions", s.getTicketTransitions)
		tickets.POST("/:id/approve-review", s.postApproveReview)
		tickets.POST("/:id/assign", s.postAssign)
		tickets.POST("/:id/start", s.postStart)
		tickets.POST("/:id/to-waiting-qc", s.postToWaitingQC)
		tickets.POST("/:id/qc-pass", s.postQCPass)
		tickets.POST("/:id/qc-fail", s.postQCFail)

		tickets.POST("/:id/work-session/pause", s.postSessionPause)
		tickets.POST("/:id/work-session/resume", s.postSessionResume)
		tickets.POST("/:id/work-session/stop", s.postSessionStop)
		tickets.GET("/:id/work-session/history", s.getSessionHistory)
	}

	ledger := api.Group("/ledger")
	{
		ledger.POST("/adjust", s.postLedgerAdjust)
		ledger.GET("/users/:id", s.getLedgerForUser)
	}

	payroll := api.Group("/payroll")
	{
		payroll.GET("/:month", s.getPayrollMonth)
		payroll.POST("/:month/build", s.postPayrollBuild)
		payroll.POST("/:month/close", s.postPayrollClose)
		payroll.POST("/:month/approve", s.postPayrollApprove)
		payroll.POST("/:month/gate", s.postPayrollGate)
	}

	sla := api.Group("/sla")
	{
		sla.GET("/events", s.getSLAEvents)
		sla.GET("/events/:id/attempts", s.getSLAAttempts)
		sla.GET("/incidents", s.getStockoutIncidents)
	}

	return engine
}
