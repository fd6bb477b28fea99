package service

import (
	"context"
	"testing"

	"bankrecon/internal/model"
	"bankrecon/internal/repository"

	"github.com/stretchr/testify/assert"
)

type fakeHistoryStore struct {
	created     []*model.BankImportHistory
	byBatchNo   map[string]*model.BankImportHistory
	lastBatchNo string
	lastFields  map[string]interface{}
	updateCalls int
	listFilter  *repository.HistoryFilter
	listResult  []*model.BankImportHistory
	listTotal   int64
}

func (f *fakeHistoryStore) Create(_ context.Context, history *model.BankImportHistory) error {
	f.created = append(f.created, history)
	return nil
}

func (f *fakeHistoryStore) GetByBatchNo(_ context.Context, batchNo string) (*model.BankImportHistory, error) {
	if h, ok := f.byBatchNo[batchNo]; ok {
		return h, nil
	}
	return nil, repository.ErrBatchNotFound
}

func (f *fakeHistoryStore) UpdateFields(_ context.Context, batchNo string, fields map[string]interface{}) error {
	f.updateCalls++
	f.lastBatchNo = batchNo
	f.lastFields = fields
	return nil
}

func (f *fakeHistoryStore) List(_ context.Context, filter *repository.HistoryFilter) ([]*model.BankImportHistory, int64, error) {
	f.listFilter = filter
	return f.listResult, f.listTotal, nil
}

func TestCreateImportHistoryDefaultsToProcessing(t *testing.T) {
	store := &fakeHistoryStore{}
	svc := &HistoryService{historyRepo: store}

	batchNo, err := svc.CreateImportHistory(context.Background(), &model.BankImportHistory{
		ImportBatchNo: "IMP-A",
		FileName:      "202403.csv",
	})

	assert.NoError(t, err)
	assert.Equal(t, "IMP-A", batchNo)
	assert.Len(t, store.created, 1)
	assert.Equal(t, model.ImportStatusProcessing, store.created[0].Status)
}

func TestCreateImportHistoryKeepsExplicitStatus(t *testing.T) {
	store := &fakeHistoryStore{}
	svc := &HistoryService{historyRepo: store}

	_, err := svc.CreateImportHistory(context.Background(), &model.BankImportHistory{
		ImportBatchNo: "IMP-A",
		Status:        model.ImportStatusFailed,
	})

	assert.NoError(t, err)
	assert.Equal(t, model.ImportStatusFailed, store.created[0].Status)
}

func TestCreateImportHistoryRequiresBatchNo(t *testing.T) {
	store := &fakeHistoryStore{}
	svc := &HistoryService{historyRepo: store}

	_, err := svc.CreateImportHistory(context.Background(), &model.BankImportHistory{})

	assert.Error(t, err)
	assert.Empty(t, store.created)
}

// 不可变列即使出现在 fields 里也会被剔除
func TestUpdateImportHistoryStripsImmutableFields(t *testing.T) {
	store := &fakeHistoryStore{}
	svc := &HistoryService{historyRepo: store}

	err := svc.UpdateImportHistory(context.Background(), "IMP-A", map[string]interface{}{
		"status":          model.ImportStatusCompleted,
		"id":              99,
		"import_batch_no": "IMP-HACK",
		"created_at":      "2020-01-01",
	})

	assert.NoError(t, err)
	assert.Equal(t, "IMP-A", store.lastBatchNo)
	assert.Equal(t, model.ImportStatusCompleted, store.lastFields["status"])
	assert.NotContains(t, store.lastFields, "id")
	assert.NotContains(t, store.lastFields, "import_batch_no")
	assert.NotContains(t, store.lastFields, "created_at")
	assert.Contains(t, store.lastFields, "updated_at")
}

// 入参 map 属于调用方，不可变列的剔除在内部副本上做
func TestUpdateImportHistoryDoesNotMutateArgument(t *testing.T) {
	store := &fakeHistoryStore{}
	svc := &HistoryService{historyRepo: store}

	fields := map[string]interface{}{
		"status": model.ImportStatusCompleted,
		"id":     99,
	}

	err := svc.UpdateImportHistory(context.Background(), "IMP-A", fields)

	assert.NoError(t, err)
	assert.Len(t, fields, 2)
	assert.Contains(t, fields, "id")
	assert.NotContains(t, fields, "updated_at")
}

func TestUpdateImportHistoryOnlyImmutableKeysNoop(t *testing.T) {
	store := &fakeHistoryStore{}
	svc := &HistoryService{historyRepo: store}

	err := svc.UpdateImportHistory(context.Background(), "IMP-A", map[string]interface{}{
		"id":              99,
		"import_batch_no": "IMP-HACK",
	})

	assert.NoError(t, err)
	assert.Equal(t, 0, store.updateCalls)
}

func TestUpdateImportHistoryEmptyFieldsNoop(t *testing.T) {
	store := &fakeHistoryStore{}
	svc := &HistoryService{historyRepo: store}

	err := svc.UpdateImportHistory(context.Background(), "IMP-A", map[string]interface{}{})

	assert.NoError(t, err)
	assert.Equal(t, 0, store.updateCalls)
}

func TestGetImportHistoryDefaultLimit(t *testing.T) {
	store := &fakeHistoryStore{}
	svc := &HistoryService{historyRepo: store}

	_, _, err := svc.GetImportHistory(context.Background(), &repository.HistoryFilter{})

	assert.NoError(t, err)
	assert.Equal(t, 20, store.listFilter.Limit)
}

func TestGetImportBatchNotFound(t *testing.T) {
	store := &fakeHistoryStore{byBatchNo: map[string]*model.BankImportHistory{}}
	svc := &HistoryService{historyRepo: store}

	_, err := svc.GetImportBatch(context.Background(), "IMP-MISSING")

	assert.ErrorIs(t, err, repository.ErrBatchNotFound)
}
