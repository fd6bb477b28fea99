package service

import (
	"context"
	"testing"

	"bankrecon/internal/model"
	"bankrecon/internal/repository"

	"github.com/stretchr/testify/assert"
)

type fakeTransactionUpdater struct {
	lastID     int64
	lastFields map[string]interface{}
	calls      int
	err        error
}

func (f *fakeTransactionUpdater) UpdateFields(_ context.Context, id int64, fields map[string]interface{}) error {
	f.calls++
	f.lastID = id
	f.lastFields = fields
	return f.err
}

func strPtr(s string) *string { return &s }

func TestUpdateTransactionMatchAllFields(t *testing.T) {
	updater := &fakeTransactionUpdater{}
	svc := &MatchService{transactionRepo: updater}

	err := svc.UpdateTransactionMatch(context.Background(), 42, &MatchUpdate{
		MatchedInvoiceID: strPtr("INV-2024-001"),
		MatchConfidence:  strPtr(model.MatchConfidenceHigh),
		MatchReason:      strPtr("金額・日付一致"),
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(42), updater.lastID)
	assert.Equal(t, "INV-2024-001", updater.lastFields["matched_invoice_id"])
	assert.Equal(t, model.MatchConfidenceHigh, updater.lastFields["match_confidence"])
	assert.Equal(t, "金額・日付一致", updater.lastFields["match_reason"])
	assert.Contains(t, updater.lastFields, "updated_at")
}

// nil 指针字段不进更新集合
func TestUpdateTransactionMatchPartial(t *testing.T) {
	updater := &fakeTransactionUpdater{}
	svc := &MatchService{transactionRepo: updater}

	err := svc.UpdateTransactionMatch(context.Background(), 42, &MatchUpdate{
		MatchedInvoiceID: strPtr("INV-2024-002"),
	})

	assert.NoError(t, err)
	assert.Equal(t, "INV-2024-002", updater.lastFields["matched_invoice_id"])
	assert.NotContains(t, updater.lastFields, "match_confidence")
	assert.NotContains(t, updater.lastFields, "match_reason")
	assert.NotContains(t, updater.lastFields, "is_confirmed")
}

func TestUpdateTransactionMatchInvalidConfidence(t *testing.T) {
	updater := &fakeTransactionUpdater{}
	svc := &MatchService{transactionRepo: updater}

	err := svc.UpdateTransactionMatch(context.Background(), 42, &MatchUpdate{
		MatchConfidence: strPtr("certain"),
	})

	assert.Error(t, err)
	assert.Equal(t, 0, updater.calls)
}

// 全部字段为 nil 时是空操作
func TestUpdateTransactionMatchNoop(t *testing.T) {
	updater := &fakeTransactionUpdater{}
	svc := &MatchService{transactionRepo: updater}

	err := svc.UpdateTransactionMatch(context.Background(), 42, &MatchUpdate{})

	assert.NoError(t, err)
	assert.Equal(t, 0, updater.calls)
}

func TestUpdateTransactionMatchNotFound(t *testing.T) {
	updater := &fakeTransactionUpdater{err: repository.ErrTransactionNotFound}
	svc := &MatchService{transactionRepo: updater}

	err := svc.UpdateTransactionMatch(context.Background(), 999, &MatchUpdate{
		MatchedInvoiceID: strPtr("INV-2024-001"),
	})

	assert.ErrorIs(t, err, repository.ErrTransactionNotFound)
}

func TestConfirmTransaction(t *testing.T) {
	updater := &fakeTransactionUpdater{}
	svc := &MatchService{transactionRepo: updater}

	err := svc.ConfirmTransaction(context.Background(), 42, "tanaka")

	assert.NoError(t, err)
	assert.Equal(t, true, updater.lastFields["is_confirmed"])
	assert.Equal(t, "tanaka", updater.lastFields["confirmed_by"])
	assert.Contains(t, updater.lastFields, "confirmed_at")
	// 确认只写确认字段，不触碰匹配字段
	assert.NotContains(t, updater.lastFields, "matched_invoice_id")
	assert.NotContains(t, updater.lastFields, "match_confidence")
}
