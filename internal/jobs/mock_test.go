package jobs

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// mockSource implements Source for testing.
type mockSource struct {
	mock.Mock
	name string
}

func newMockSource(name string) *mockSource {
	return &mockSource{name: name}
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Fetch(ctx context.Context, q Query) (Batch, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(Batch), args.Error(1)
}
