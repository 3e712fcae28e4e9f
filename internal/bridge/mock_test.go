package bridge

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"
)

// MockEngine is a mock implementation of browser.Engine for testing.
type MockEngine struct {
	mock.Mock
}

// Navigate mocks the Navigate method.
func (m *MockEngine) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

// Evaluate mocks the Evaluate method.
func (m *MockEngine) Evaluate(ctx context.Context, js string) (string, error) {
	args := m.Called(ctx, js)
	return args.String(0), args.Error(1)
}

// Close mocks the Close method.
func (m *MockEngine) Close() error {
	args := m.Called()
	return args.Error(0)
}

// jsContaining matches rendered templates carrying fragment.
func jsContaining(fragment string) interface{} {
	return mock.MatchedBy(func(js string) bool {
		return strings.Contains(js, fragment)
	})
}

const (
	undefinedResult = `{"state":"undefined"}`
	loaderMarker    = "scriptbridge loader template"
	executorMarker  = "scriptbridge executor template"
)
