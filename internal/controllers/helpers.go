package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tradedoc/internal/ingest"
	"tradedoc/internal/logger"
	"tradedoc/internal/middleware"
	"tradedoc/internal/models"
	"tradedoc/internal/report"
	"tradedoc/internal/store"
	"tradedoc/internal/workflow"
)

// respondError maps a service error to its HTTP status.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	var batchErr *ingest.BatchError
	switch {
	case errors.As(err, &batchErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation errors", "errors": batchErr.Errors})
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, report.ErrNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrInvalidStatus), errors.Is(err, models.ErrUnknownStatus), errors.Is(err, report.ErrUnsupportedView):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		reqLog := logger.FromContext(c.Request.Context(), log)
		reqLog.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}

func getIntWithDefault(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func requireActor(c *gin.Context) (workflow.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return workflow.Actor{}, false
	}
	return actor, true
}

// parseStatus converts an optional status from a request body, accepting the
// code or the Vietnamese label.
func parseStatus(raw *string) (*models.Status, error) {
	if raw == nil {
		return nil, nil
	}
	st, err := models.ParseStatus(*raw)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
