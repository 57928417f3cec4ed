package ordinator

import (
	"github.com/stretchr/testify/mock"
)

// MockStoreTestify wraps an in memory store and lets tests
// override the outcome of writes
type MockStoreTestify struct {
	mock.Mock
	*InMemoryStore
}

func newMockStore() *MockStoreTestify {
	return &MockStoreTestify{InMemoryStore: NewInMemoryStorage()}
}

func (m *MockStoreTestify) StoreRecords(records []*Record) error {
	args := m.Called(records)
	if err := args.Error(0); err != nil {
		return err
	}
	return m.InMemoryStore.StoreRecords(records)
}
