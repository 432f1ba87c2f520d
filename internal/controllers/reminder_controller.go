package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tradedoc/internal/reminder"
)

type ReminderController struct {
	Scheduler *reminder.Scheduler
	Log       zerolog.Logger
}

// Sweep runs one reminder sweep and reports what it did.
func (rc *ReminderController) Sweep(c *gin.Context) {
	res, err := rc.Scheduler.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, rc.Log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
