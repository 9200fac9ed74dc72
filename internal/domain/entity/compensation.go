package entity

import (
	"time"

	"github.com/google/uuid"
)

type CompensationKind string

// CompensationDeleteOffer - удалить предложение, созданное шагом
// согласования, который не был доведён до конца.
const CompensationDeleteOffer CompensationKind = "delete_offer"

type Compensation struct {
	ID            uuid.UUID        `db:"id"`
	Kind          CompensationKind `db:"kind"`
	ActorID       int64            `db:"actor_id"`
	RequestID     int64            `db:"request_id"`
	OfferID       int64            `db:"offer_id"`
	Attempts      int              `db:"attempts"`
	LastError     string           `db:"last_error"`
	CreatedAt     time.Time        `db:"created_at"`
	NextAttemptAt time.Time        `db:"next_attempt_at"`
}

func NewOfferCompensation(actorID, requestID, offerID int64, cause error) *Compensation {
	now := time.Now()
	c := &Compensation{
		ID:            uuid.New(),
		Kind:          CompensationDeleteOffer,
		ActorID:       actorID,
		RequestID:     requestID,
		OfferID:       offerID,
		CreatedAt:     now,
		NextAttemptAt: now,
	}
	if cause != nil {
		c.LastError = cause.Error()
	}
	return c
}
