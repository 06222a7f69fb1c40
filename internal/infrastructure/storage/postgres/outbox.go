package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/events"
	"lotkeeper/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// outboxMaxRetries is the retry budget before a message is marked failed.
const outboxMaxRetries = 5

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID          id.ID        `db:"id"`
	ProductID   id.ID        `db:"product_id"`
	EventType   string       `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Status      OutboxStatus `db:"status"`
	RetryCount  int          `db:"retry_count"`
	LastError   *string      `db:"last_error"`
	NextRetryAt *time.Time   `db:"next_retry_at"`
	CreatedAt   time.Time    `db:"created_at"`
	PublishedAt *time.Time   `db:"published_at"`
}

// OutboxPublisher implements events.Publisher by writing to the sys_outbox
// table inside the caller's transaction. The event therefore commits
// atomically with the ledger mutation that caused it, or not at all.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish writes an inventory change to the outbox.
// MUST be called inside a transaction context.
func (p *OutboxPublisher) Publish(ctx context.Context, ev events.InventoryChanged) error {
	t := p.txManager.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = t.Exec(ctx, `
		INSERT INTO sys_outbox (id, product_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id.New(), ev.ProductID, events.EventInventoryChanged, payload, OutboxStatusPending, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxRelay drains pending messages onto the in-process event bus. Runs in
// the background worker. Each batch is fetched, delivered and marked inside
// one transaction, so the FOR UPDATE SKIP LOCKED row locks are held until the
// status update commits and concurrent workers skip in-flight messages.
type OutboxRelay struct {
	pool      *pgxpool.Pool
	bus       *events.Bus
	batchSize int
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(pool *pgxpool.Pool, bus *events.Bus, batchSize int) *OutboxRelay {
	return &OutboxRelay{
		pool:      pool,
		bus:       bus,
		batchSize: batchSize,
	}
}

// ProcessBatch fetches and dispatches pending messages.
// Returns the number of delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, product_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		err := rows.Scan(
			&msg.ID, &msg.ProductID, &msg.EventType, &msg.Payload, &msg.Status,
			&msg.RetryCount, &msg.LastError, &msg.NextRetryAt, &msg.CreatedAt, &msg.PublishedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox messages: %w", err)
	}

	delivered := 0
	for _, msg := range messages {
		if err := r.deliver(ctx, tx, msg); err != nil {
			logger.Warn(ctx, "outbox delivery failed",
				"message_id", msg.ID, "retry_count", msg.RetryCount, "error", err)
			continue
		}
		delivered++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return delivered, nil
}

// deliver dispatches one message and records the outcome in the batch tx.
func (r *OutboxRelay) deliver(ctx context.Context, tx pgx.Tx, msg *OutboxMessage) error {
	var ev events.InventoryChanged
	err := json.Unmarshal(msg.Payload, &ev)
	if err == nil {
		r.bus.Dispatch(ctx, ev)
	}

	if err != nil {
		nextRetry := time.Now().Add(time.Duration(msg.RetryCount+1) * time.Minute)
		errStr := err.Error()

		_, updateErr := tx.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count >= $3 THEN $4 ELSE status END
			WHERE id = $5
		`, errStr, nextRetry, outboxMaxRetries, OutboxStatusFailed, msg.ID)

		if updateErr != nil {
			return fmt.Errorf("update failed message: %w", updateErr)
		}
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)

	return err
}

// PurgePublished deletes delivered messages older than the retention window.
func (r *OutboxRelay) PurgePublished(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM sys_outbox
		WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}
