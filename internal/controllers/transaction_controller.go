package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tradedoc/internal/ingest"
	"tradedoc/internal/models"
	"tradedoc/internal/report"
	"tradedoc/internal/workflow"
)

type TransactionController struct {
	Reports  *report.Service
	Machine  *workflow.Machine
	Importer *ingest.Importer
	Log      zerolog.Logger
}

// List returns a page of transactions, optionally scoped to a status view.
func (tc *TransactionController) List(c *gin.Context) {
	q := report.Query{
		Page:   getIntWithDefault(c, "page", 1),
		Limit:  getIntWithDefault(c, "limit", 10),
		Search: c.Query("search"),
	}
	if raw := c.Query("status"); raw != "" {
		view, err := models.ParseView(raw)
		if err != nil {
			respondError(c, tc.Log, err)
			return
		}
		q.View = &view
	}

	page, err := tc.Reports.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, tc.Log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Censored returns the post-censorship queue.
func (tc *TransactionController) Censored(c *gin.Context) {
	page, err := tc.Reports.PostCensorshipQueue(c.Request.Context(), report.Query{
		Page:   getIntWithDefault(c, "page", 1),
		Limit:  getIntWithDefault(c, "limit", 10),
		Search: c.Query("search"),
	})
	if err != nil {
		respondError(c, tc.Log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (tc *TransactionController) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	row, err := tc.Reports.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, tc.Log, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// Import ingests one batch. Either every valid row is stored or, when any row
// fails validation, nothing is.
func (tc *TransactionController) Import(c *gin.Context) {
	rows, err := readRows(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := tc.Importer.Import(c.Request.Context(), rows)
	if err != nil {
		respondError(c, tc.Log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type updateStatusRequest struct {
	Status *string `json:"status"`
	Note   *string `json:"note"`
}

type updateCensorshipRequest struct {
	Status       *string `json:"status"`
	NoteCensored *string `json:"note_censored"`
	Censored     *bool   `json:"censored"`
}

type updatePostInspectionRequest struct {
	Status         *string `json:"status"`
	NoteInspection *string `json:"note_inspection"`
	PostInspection *bool   `json:"post_inspection"`
}

// Update is the officer's document status update.
func (tc *TransactionController) Update(c *gin.Context) {
	id, actor, ok := tc.prepare(c, workflow.RoleOfficer)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := parseStatus(req.Status)
	if err != nil {
		respondError(c, tc.Log, err)
		return
	}

	tx, err := tc.Machine.AdvanceDocuments(c.Request.Context(), id, workflow.AdvanceDocuments{Status: status, Note: req.Note}, actor)
	tc.respond(c, tx, err)
}

func (tc *TransactionController) UpdateCensorship(c *gin.Context) {
	id, actor, ok := tc.prepare(c, workflow.RoleCensor)
	if !ok {
		return
	}
	var req updateCensorshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := parseStatus(req.Status)
	if err != nil {
		respondError(c, tc.Log, err)
		return
	}

	tx, err := tc.Machine.SetCensorship(c.Request.Context(), id, workflow.SetCensorship{
		Status:       status,
		NoteCensored: req.NoteCensored,
		Censored:     req.Censored,
	}, actor)
	tc.respond(c, tx, err)
}

func (tc *TransactionController) UpdatePostInspection(c *gin.Context) {
	id, actor, ok := tc.prepare(c, workflow.RoleInspector)
	if !ok {
		return
	}
	var req updatePostInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := parseStatus(req.Status)
	if err != nil {
		respondError(c, tc.Log, err)
		return
	}

	tx, err := tc.Machine.SetPostInspection(c.Request.Context(), id, workflow.SetPostInspection{
		Status:         status,
		NoteInspection: req.NoteInspection,
		PostInspection: req.PostInspection,
	}, actor)
	tc.respond(c, tx, err)
}

// ExportReport streams the awaiting or overdue deadline report.
func (tc *TransactionController) ExportReport(c *gin.Context) {
	view, err := models.ParseView(c.Param("status"))
	if err != nil {
		respondError(c, tc.Log, err)
		return
	}
	tc.stream(c, "report-"+string(view), func() error {
		return tc.Reports.ExportDeadline(c.Request.Context(), c.Writer, view)
	})
}

// ExportPostInspection streams the post-inspection audit report for ?flag=.
func (tc *TransactionController) ExportPostInspection(c *gin.Context) {
	flag, err := strconv.ParseBool(c.DefaultQuery("flag", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag"})
		return
	}
	tc.stream(c, fmt.Sprintf("post-inspection-%t", flag), func() error {
		return tc.Reports.ExportPostInspection(c.Request.Context(), c.Writer, flag)
	})
}

// prepare authorizes the caller for the stage before the body is looked at, so
// a caller without the role learns nothing about the payload's validity.
func (tc *TransactionController) prepare(c *gin.Context, role workflow.Role) (uint, workflow.Actor, bool) {
	actor, ok := requireActor(c)
	if !ok {
		return 0, workflow.Actor{}, false
	}
	if err := actor.Authorize(role); err != nil {
		respondError(c, tc.Log, err)
		return 0, workflow.Actor{}, false
	}
	id, ok := paramID(c)
	if !ok {
		return 0, workflow.Actor{}, false
	}
	return id, actor, true
}

func (tc *TransactionController) respond(c *gin.Context, tx models.Transaction, err error) {
	if err != nil {
		respondError(c, tc.Log, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// stream sets the download headers before write runs; an error after the first
// byte can only be logged.
func (tc *TransactionController) stream(c *gin.Context, name string, write func() error) {
	c.Header("Content-Type", report.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%d.xlsx", name, time.Now().Unix()))

	if err := write(); err != nil {
		if c.Writer.Written() {
			tc.Log.Error().Err(err).Msg("export aborted mid-stream")
			return
		}
		c.Header("Content-Type", "")
		c.Header("Content-Disposition", "")
		respondError(c, tc.Log, err)
		return
	}
	c.Status(http.StatusOK)
}
