package entity

import (
	"strings"
	"time"

	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
	"github.com/ignatzorin/techmarket-sync/internal/validation"
)

type Review struct {
	ID           int64     `json:"id"`
	RequestID    int64     `json:"request_id"`
	ClientID     int64     `json:"client_id"`
	TechnicianID int64     `json:"technician_id"`
	Rating       int       `json:"rating"`
	Comment      *string   `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewReview(requestID, clientID, technicianID int64, rating int, comment *string) (*Review, error) {
	if err := validation.ValidateRating(rating); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateReviewComment(comment); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}
	return &Review{
		RequestID:    requestID,
		ClientID:     clientID,
		TechnicianID: technicianID,
		Rating:       rating,
		Comment:      comment,
	}, nil
}
