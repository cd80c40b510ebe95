package rules

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRunner is a testify mock of Runner. Expectations are keyed on the tool
// name followed by each argument.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	result := m.Called(toCallArgs(name, args)...)
	if result.Get(0) == nil {
		return nil, result.Error(1)
	}
	return result.Get(0).([]byte), result.Error(1)
}

func (m *MockRunner) Run(_ context.Context, name string, args ...string) error {
	result := m.Called(toCallArgs(name, args)...)
	return result.Error(0)
}

func toCallArgs(name string, args []string) []interface{} {
	callArgs := make([]interface{}, 0, len(args)+1)
	callArgs = append(callArgs, name)
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	return callArgs
}
