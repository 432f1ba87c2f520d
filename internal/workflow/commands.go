package workflow

import "tradedoc/internal/models"

// AdvanceDocuments is the officer's update. Nil fields are left untouched.
type AdvanceDocuments struct {
	Status *models.Status `json:"status"`
	Note   *string        `json:"note"`
}

// SetCensorship is the censor's update.
type SetCensorship struct {
	Status       *models.Status `json:"status"`
	NoteCensored *string        `json:"note_censored"`
	Censored     *bool          `json:"censored"`
}

// SetPostInspection is the inspector's update.
type SetPostInspection struct {
	Status         *models.Status `json:"status"`
	NoteInspection *string        `json:"note_inspection"`
	PostInspection *bool          `json:"post_inspection"`
}
