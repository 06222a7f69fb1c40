package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/pkg/logger"
)

// MovementArchiver compacts old movement log rows into zstd-compressed
// archive blobs. Movements are immutable, so compressing a closed time window
// loses nothing; the hot table stays small and the history stays queryable
// through ReadArchive.
type MovementArchiver struct {
	txManager *TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder

	// chunkSize bounds how many rows go into one archive blob.
	chunkSize int
}

// NewMovementArchiver creates a new movement archiver.
func NewMovementArchiver(txManager *TxManager) (*MovementArchiver, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &MovementArchiver{
		txManager: txManager,
		encoder:   encoder,
		decoder:   decoder,
		chunkSize: 10_000,
	}, nil
}

// ArchiveOlderThan moves movements that occurred before cutoff into one
// compressed archive row and deletes the originals, atomically. Returns the
// number of archived movements; zero when nothing is old enough.
func (a *MovementArchiver) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	archived := 0
	err := a.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		querier := a.txManager.GetQuerier(ctx)

		var movements []movement.Movement
		rows, err := querier.Query(ctx, `
			SELECT id, product_id, batch_id, type, quantity,
			       reference_kind, reference_id,
			       actor, reason, occurred_at, created_at
			FROM movements
			WHERE occurred_at < $1
			ORDER BY occurred_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, cutoff, a.chunkSize)
		if err != nil {
			return fmt.Errorf("select archivable movements: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var m movement.Movement
			var quantityScaled int64
			err := rows.Scan(
				&m.ID, &m.ProductID, &m.BatchID, &m.Type, &quantityScaled,
				&m.RefKind, &m.RefID,
				&m.Actor, &m.Reason, &m.OccurredAt, &m.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("scan movement: %w", err)
			}
			m.Quantity = types.NewQuantityFromInt64Scaled(quantityScaled)
			movements = append(movements, m)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate movements: %w", err)
		}

		if len(movements) == 0 {
			return nil
		}

		payload, err := json.Marshal(movements)
		if err != nil {
			return fmt.Errorf("marshal movements: %w", err)
		}
		compressed := a.encoder.EncodeAll(payload, nil)

		from := movements[0].OccurredAt
		to := movements[len(movements)-1].OccurredAt
		_, err = querier.Exec(ctx, `
			INSERT INTO movement_archives (
				id, from_date, to_date, movement_count,
				payload_compressed, compression_algo, created_at
			) VALUES ($1, $2, $3, $4, $5, 'zstd', $6)
		`, id.New(), from, to, len(movements), compressed, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert archive: %w", err)
		}

		movementIDs := make([]id.ID, 0, len(movements))
		for _, m := range movements {
			movementIDs = append(movementIDs, m.ID)
		}
		tag, err := querier.Exec(ctx, `DELETE FROM movements WHERE id = ANY($1)`, movementIDs)
		if err != nil {
			return fmt.Errorf("delete archived movements: %w", err)
		}
		if int(tag.RowsAffected()) != len(movements) {
			return fmt.Errorf("archive delete mismatch: expected %d, deleted %d", len(movements), tag.RowsAffected())
		}

		archived = len(movements)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if archived > 0 {
		logger.Info(ctx, "movements archived", "count", archived, "cutoff", cutoff)
	}
	return archived, nil
}

// ReadArchive decompresses one archive blob back into movements.
func (a *MovementArchiver) ReadArchive(ctx context.Context, archiveID id.ID) ([]movement.Movement, error) {
	var compressed []byte
	err := a.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT payload_compressed FROM movement_archives WHERE id = $1
	`, archiveID).Scan(&compressed)
	if err != nil {
		return nil, apperror.NewNotFound("movement archive", archiveID.String()).WithCause(err)
	}

	payload, err := a.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress archive: %w", err)
	}

	var movements []movement.Movement
	if err := json.Unmarshal(payload, &movements); err != nil {
		return nil, fmt.Errorf("unmarshal archive: %w", err)
	}
	return movements, nil
}
