package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tradedoc/internal/models"
	"tradedoc/internal/store"
)

// SenderConfigController manages the mailbox reminders are sent from.
type SenderConfigController struct {
	Store store.SenderStore
	Log   zerolog.Logger
}

type senderConfigRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password"`
}

func (sc *SenderConfigController) List(c *gin.Context) {
	senders, err := sc.Store.ListSenders(c.Request.Context())
	if err != nil {
		respondError(c, sc.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": senders})
}

func (sc *SenderConfigController) Create(c *gin.Context) {
	var req senderConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sender := models.SenderConfig{Email: req.Email, Password: req.Password}
	if err := sc.Store.CreateSender(c.Request.Context(), &sender); err != nil {
		respondError(c, sc.Log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": sender})
}

// Update changes the address; an empty password keeps the stored one.
func (sc *SenderConfigController) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req senderConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sender, err := sc.Store.UpdateSender(c.Request.Context(), id, req.Email, req.Password)
	if err != nil {
		respondError(c, sc.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sender})
}
