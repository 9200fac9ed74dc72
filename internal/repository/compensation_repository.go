package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	domainrepo "github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/repository/common"
)

// claimLease - на сколько выбранная запись скрывается от других воркеров.
const claimLease = time.Minute

// CompensationRepository хранит журнал компенсаций в PostgreSQL.
type CompensationRepository struct {
	db *sqlx.DB
}

// NewCompensationRepository создаёт экземпляр репозитория.
func NewCompensationRepository(db *sqlx.DB) *CompensationRepository {
	return &CompensationRepository{db: db}
}

var _ domainrepo.CompensationJournal = (*CompensationRepository)(nil)

// Record сохраняет новую компенсацию.
func (r *CompensationRepository) Record(ctx context.Context, c *entity.Compensation) error {
	query := `
		INSERT INTO compensations (id, kind, actor_id, request_id, offer_id, attempts, last_error, created_at, next_attempt_at)
		VALUES (:id, :kind, :actor_id, :request_id, :offer_id, :attempts, :last_error, :created_at, :next_attempt_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("compensation repository: record %w", err)
	}
	return nil
}

// ListDue выбирает созревшие компенсации и сдвигает их срок на claimLease,
// чтобы параллельный воркер не взял те же записи.
func (r *CompensationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]entity.Compensation, error) {
	var due []entity.Compensation

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			SELECT id, kind, actor_id, request_id, offer_id, attempts, last_error, created_at, next_attempt_at
			FROM compensations
			WHERE done_at IS NULL AND next_attempt_at <= $1
			ORDER BY next_attempt_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`
		if err := tx.SelectContext(ctx, &due, query, now, limit); err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		ids := make([]string, 0, len(due))
		for _, c := range due {
			ids = append(ids, c.ID.String())
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE compensations SET next_attempt_at = $1 WHERE id = ANY($2::uuid[])`,
			now.Add(claimLease), pq.Array(ids),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("compensation repository: list due %w", err)
	}

	return due, nil
}

// MarkDone закрывает компенсацию.
func (r *CompensationRepository) MarkDone(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE compensations SET done_at = NOW() WHERE id = $1 AND done_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("compensation repository: mark done %w", err)
	}
	return requireAffected(res.RowsAffected())
}

// MarkFailed увеличивает счётчик попыток и переносит следующую попытку.
func (r *CompensationRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, nextAttemptAt time.Time) error {
	query := `
		UPDATE compensations
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1 AND done_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, reason, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("compensation repository: mark failed %w", err)
	}
	return requireAffected(res.RowsAffected())
}

func requireAffected(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("compensation repository: rows affected %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
