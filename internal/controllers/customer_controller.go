package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tradedoc/internal/ingest"
	"tradedoc/internal/logger"
	"tradedoc/internal/report"
	"tradedoc/internal/store"
)

type CustomerController struct {
	Store   store.CustomerStore
	Reports *report.Service
	Log     zerolog.Logger
}

// Import upserts customers by customer number.
func (cc *CustomerController) Import(c *gin.Context) {
	rows, err := readRows(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customers, rowErrs := ingest.NormalizeCustomers(rows)
	if len(rowErrs) > 0 {
		respondError(c, cc.Log, &ingest.BatchError{Errors: rowErrs})
		return
	}

	n, err := cc.Store.UpsertCustomers(c.Request.Context(), customers)
	if err != nil {
		respondError(c, cc.Log, err)
		return
	}

	log := logger.FromContext(c.Request.Context(), cc.Log)
	log.Info().Int("count", n).Msg("customers imported")
	c.JSON(http.StatusCreated, gin.H{"count": n})
}

// Reminders lists customers with their transactions, by reminder state
// (?sent=true for customers already reminded).
func (cc *CustomerController) Reminders(c *gin.Context) {
	sent, err := strconv.ParseBool(c.DefaultQuery("sent", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sent"})
		return
	}

	page, err := cc.Reports.CustomersWithTransactions(c.Request.Context(), report.CustomerQuery{
		Page:   getIntWithDefault(c, "page", 1),
		Limit:  getIntWithDefault(c, "limit", 10),
		Search: c.Query("search"),
		Sent:   sent,
	})
	if err != nil {
		respondError(c, cc.Log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
