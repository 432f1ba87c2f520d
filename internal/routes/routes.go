package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tradedoc/internal/config"
	"tradedoc/internal/controllers"
	"tradedoc/internal/ingest"
	"tradedoc/internal/middleware"
	"tradedoc/internal/reminder"
	"tradedoc/internal/report"
	"tradedoc/internal/store"
	"tradedoc/internal/workflow"
)

// Services are the engine components the API serves.
type Services struct {
	Store     store.Store
	Importer  *ingest.Importer
	Machine   *workflow.Machine
	Reports   *report.Service
	Scheduler *reminder.Scheduler
	Log       zerolog.Logger
}

// NewServices builds the engine on top of a store, a notifier and a deferrer.
func NewServices(st store.Store, cfg *config.Config, notifier reminder.Notifier, deferrer reminder.Deferrer, log zerolog.Logger) *Services {
	return &Services{
		Store:    st,
		Importer: ingest.NewImporter(st, ingest.Options{Strict: cfg.ImportStrict}, log),
		Machine:  workflow.NewMachine(st, log),
		Reports:  report.NewService(st, cfg.Location, log),
		Scheduler: reminder.NewScheduler(st, notifier, deferrer, reminder.Options{
			LeadDays:     cfg.ReminderLeadDays,
			DispatchHour: cfg.ReminderDispatchHour,
			Location:     cfg.Location,
			DefaultFrom:  cfg.SMTPFrom,
		}, log),
		Log: log,
	}
}

// SetupRouter initializes all controllers and API routes
func SetupRouter(cfg *config.Config, svc *Services) *gin.Engine {
	transactionController := controllers.TransactionController{
		Reports:  svc.Reports,
		Machine:  svc.Machine,
		Importer: svc.Importer,
		Log:      svc.Log,
	}
	customerController := controllers.CustomerController{Store: svc.Store, Reports: svc.Reports, Log: svc.Log}
	senderController := controllers.SenderConfigController{Store: svc.Store, Log: svc.Log}
	reminderController := controllers.ReminderController{Scheduler: svc.Scheduler, Log: svc.Log}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(svc.Log))

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})

	// Group API routes under /api/v1
	api := router.Group("/api/v1", middleware.JWTAuth([]byte(cfg.JWTSecret)))
	{
		transactions := api.Group("/transactions")
		{
			transactions.GET("", transactionController.List)
			transactions.GET("/censored", transactionController.Censored)
			transactions.POST("/import", transactionController.Import)
			transactions.GET("/report/post-inspection", transactionController.ExportPostInspection)
			transactions.GET("/report/:status", transactionController.ExportReport)
			transactions.GET("/:id", transactionController.Get)
			transactions.PUT("/:id", transactionController.Update)
			transactions.PUT("/:id/censorship", transactionController.UpdateCensorship)
			transactions.PUT("/:id/post-inspection", transactionController.UpdatePostInspection)
		}

		customers := api.Group("/customers")
		{
			customers.POST("/import", customerController.Import)
			customers.GET("/reminders", customerController.Reminders)
		}

		// sender mailbox credentials are admin-only
		senders := api.Group("/sender-configs", middleware.RequireRole(workflow.RoleAdmin))
		{
			senders.GET("", senderController.List)
			senders.POST("", senderController.Create)
			senders.PUT("/:id", senderController.Update)
		}

		api.POST("/reminders/sweep", reminderController.Sweep)
	}

	return router
}
