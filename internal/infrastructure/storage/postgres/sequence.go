package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lotkeeper/internal/domain/batch"
)

// SequenceNumerator issues sequential human-readable codes backed by the
// sys_sequences table. The UPSERT + RETURNING round trip is atomic, so codes
// stay unique under concurrent receivings. Sequences reset yearly; the year
// is part of both the sequence key and the formatted code.
type SequenceNumerator struct {
	txManager *TxManager
	padWidth  int
}

var _ batch.CodeGenerator = (*SequenceNumerator)(nil)

// NewSequenceNumerator creates a new sequence-backed code generator.
func NewSequenceNumerator(txManager *TxManager) *SequenceNumerator {
	return &SequenceNumerator{txManager: txManager, padWidth: 6}
}

// Next returns the next code for a scope, formatted PREFIX-YEAR-NNNNNN
// (e.g. BATCH-2026-000042).
func (s *SequenceNumerator) Next(ctx context.Context, scope string) (string, error) {
	year := time.Now().UTC().Year()
	key := fmt.Sprintf("%s_%d", scope, year)

	var num int64
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next sequence value: %w", err)
	}

	return fmt.Sprintf("%s-%d-%0*d", strings.ToUpper(scope), year, s.padWidth, num), nil
}
