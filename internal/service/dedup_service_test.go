package service

import (
	"context"
	"testing"
	"time"

	"bankrecon/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// fakeTransactionStore 内存假存储，同时实现查询与批量插入接口
type fakeTransactionStore struct {
	transactions []*model.ImportedBankTransaction

	insertErr   error
	insertCalls int
	outbox      []*model.OutboxMessage
	fitLookups  int
}

func (f *fakeTransactionStore) GetByHash(_ context.Context, hash string) (*model.ImportedBankTransaction, error) {
	for _, t := range f.transactions {
		if t.TransactionHash == hash {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeTransactionStore) GetByFitID(_ context.Context, fitID string) (*model.ImportedBankTransaction, error) {
	f.fitLookups++
	for _, t := range f.transactions {
		if t.FitID != "" && t.FitID == fitID {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeTransactionStore) ListByHashes(_ context.Context, hashes []string) ([]*model.ImportedBankTransaction, error) {
	set := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		set[h] = true
	}
	var found []*model.ImportedBankTransaction
	for _, t := range f.transactions {
		if set[t.TransactionHash] {
			found = append(found, t)
		}
	}
	return found, nil
}

func (f *fakeTransactionStore) InsertBatch(_ context.Context, rows []*model.ImportedBankTransaction, outboxMsg *model.OutboxMessage) error {
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.transactions = append(f.transactions, rows...)
	if outboxMsg != nil {
		f.outbox = append(f.outbox, outboxMsg)
	}
	return nil
}

func newDedupWithStore(store *fakeTransactionStore) *DedupService {
	return &DedupService{transactionRepo: store}
}

func bankTx(dateStr, content string, amount int64, ref string) *model.BankTransaction {
	d, _ := time.Parse("2006-01-02", dateStr)
	return &model.BankTransaction{
		Date:            d,
		Amount:          decimal.NewFromInt(amount),
		Content:         content,
		Type:            model.DirectionDeposit,
		ReferenceNumber: ref,
	}
}

func TestCheckDuplicateByHash(t *testing.T) {
	store := &fakeTransactionStore{}
	svc := newDedupWithStore(store)
	ctx := context.Background()

	tx := bankTx("2024-03-15", "振込 カ）サンプル", 50000, "")
	store.transactions = append(store.transactions, &model.ImportedBankTransaction{
		TransactionHash: svc.Hash(tx),
		ImportedAt:      time.Now(),
		FileName:        "202403.csv",
	})

	result, err := svc.CheckDuplicate(ctx, tx)

	assert.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.NotNil(t, result.Existing)
	assert.Equal(t, svc.Hash(tx), result.TransactionHash)
}

func TestCheckDuplicateFallbackToFitID(t *testing.T) {
	store := &fakeTransactionStore{}
	svc := newDedupWithStore(store)
	ctx := context.Background()

	// 同一对账单行被重新导出时摘要格式变了，指纹不同但参照号相同
	original := bankTx("2024-03-15", "振込 カ）サンプル", 50000, "FIT-001")
	reexported := bankTx("2024-03-15", "フリコミ（カ）サンプル", 50000, "FIT-001")
	store.transactions = append(store.transactions, &model.ImportedBankTransaction{
		TransactionHash: svc.Hash(original),
		FitID:           "FIT-001",
	})

	result, err := svc.CheckDuplicate(ctx, reexported)

	assert.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, "FIT-001", result.Existing.FitID)
	// 返回的指纹仍是入参交易自己的指纹
	assert.Equal(t, svc.Hash(reexported), result.TransactionHash)
}

func TestCheckDuplicateNoFitIDLookupWithoutReference(t *testing.T) {
	store := &fakeTransactionStore{}
	svc := newDedupWithStore(store)

	result, err := svc.CheckDuplicate(context.Background(), bankTx("2024-03-15", "ATM引出", 1200, ""))

	assert.NoError(t, err)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, 0, store.fitLookups)
}

func TestCheckDuplicatesEmptyInput(t *testing.T) {
	svc := newDedupWithStore(&fakeTransactionStore{})

	results, err := svc.CheckDuplicates(context.Background(), nil)

	assert.NoError(t, err)
	assert.Empty(t, results)
}

// 单笔与批量路径对已入库交易的判定必须一致
func TestCheckDuplicatesConsistentWithSingleCheck(t *testing.T) {
	store := &fakeTransactionStore{}
	svc := newDedupWithStore(store)
	ctx := context.Background()

	known := bankTx("2024-03-15", "振込 カ）サンプル", 50000, "")
	unknown := bankTx("2024-03-16", "ATM引出", 1200, "")
	store.transactions = append(store.transactions, &model.ImportedBankTransaction{
		TransactionHash: svc.Hash(known),
	})

	single, err := svc.CheckDuplicate(ctx, known)
	assert.NoError(t, err)

	batch, err := svc.CheckDuplicates(ctx, []*model.BankTransaction{known, unknown})
	assert.NoError(t, err)
	assert.Len(t, batch, 2)

	assert.True(t, single.IsDuplicate)
	assert.True(t, batch[svc.Hash(known)].IsDuplicate)
	assert.False(t, batch[svc.Hash(unknown)].IsDuplicate)
}

// 批量路径不做参照号回退：指纹不同的重新导出行不会被批量检查识别
func TestCheckDuplicatesNoFitIDFallback(t *testing.T) {
	store := &fakeTransactionStore{}
	svc := newDedupWithStore(store)
	ctx := context.Background()

	original := bankTx("2024-03-15", "振込 カ）サンプル", 50000, "FIT-001")
	reexported := bankTx("2024-03-15", "フリコミ（カ）サンプル", 50000, "FIT-001")
	store.transactions = append(store.transactions, &model.ImportedBankTransaction{
		TransactionHash: svc.Hash(original),
		FitID:           "FIT-001",
	})

	single, err := svc.CheckDuplicate(ctx, reexported)
	assert.NoError(t, err)
	assert.True(t, single.IsDuplicate)

	batch, err := svc.CheckDuplicates(ctx, []*model.BankTransaction{reexported})
	assert.NoError(t, err)
	assert.False(t, batch[svc.Hash(reexported)].IsDuplicate)
	assert.Equal(t, 1, store.fitLookups) // 只有单笔路径查了参照号
}

// 同批内指纹相同的交易共享同一个结果项
func TestCheckDuplicatesCollapsesSameHash(t *testing.T) {
	svc := newDedupWithStore(&fakeTransactionStore{})

	a := bankTx("2024-03-15", "ATM引出", 1200, "")
	b := bankTx("2024-03-15", "ATM引出", 1200, "")

	results, err := svc.CheckDuplicates(context.Background(), []*model.BankTransaction{a, b})

	assert.NoError(t, err)
	assert.Len(t, results, 1)
}
