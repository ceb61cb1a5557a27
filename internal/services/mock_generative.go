package services

import (
	"context"
	"sync"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
)

// MockGenerativeService is a mock implementation of GenerativeService for
// testing.
type MockGenerativeService struct {
	GenerateWorldFunc func(ctx context.Context, settings state.Settings, model string) (string, error)
	GenerateTurnFunc  func(ctx context.Context, req TurnRequest) (string, error)
	GenerateImageFunc func(ctx context.Context, req ImageRequest) ([]byte, error)

	// Track calls for testing
	GenerateWorldCalls []GenerateWorldCall
	GenerateTurnCalls  []TurnRequest
	GenerateImageCalls []ImageRequest

	mu sync.Mutex // protects all fields above
}

type GenerateWorldCall struct {
	Settings state.Settings
	Model    string
}

// Ensure MockGenerativeService implements GenerativeService interface
var _ GenerativeService = (*MockGenerativeService)(nil)

// NewMockGenerativeService creates a new mock generative service.
func NewMockGenerativeService() *MockGenerativeService {
	return &MockGenerativeService{
		GenerateWorldCalls: make([]GenerateWorldCall, 0),
		GenerateTurnCalls:  make([]TurnRequest, 0),
		GenerateImageCalls: make([]ImageRequest, 0),
	}
}

func (m *MockGenerativeService) GenerateWorld(ctx context.Context, settings state.Settings, model string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateWorldCalls = append(m.GenerateWorldCalls, GenerateWorldCall{Settings: settings, Model: model})

	if m.GenerateWorldFunc != nil {
		return m.GenerateWorldFunc(ctx, settings, model)
	}

	// Default behavior - a minimal valid structured reply
	return `{"narrative":"You arrive.","location":"` + settings.StartLocation + `","visual_prompt":"a quiet street","inventory":[],"key_elements":[],"available_exits":["north"],"visual_changed":true}`, nil
}

func (m *MockGenerativeService) GenerateTurn(ctx context.Context, req TurnRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateTurnCalls = append(m.GenerateTurnCalls, req)

	if m.GenerateTurnFunc != nil {
		return m.GenerateTurnFunc(ctx, req)
	}

	return `{"narrative":"Nothing happens.","location":"","visual_prompt":"","inventory":[],"key_elements":[],"available_exits":[],"visual_changed":false}`, nil
}

func (m *MockGenerativeService) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateImageCalls = append(m.GenerateImageCalls, req)

	if m.GenerateImageFunc != nil {
		return m.GenerateImageFunc(ctx, req)
	}

	return []byte("mock-image-bytes"), nil
}

// ImageCallCount returns how many image requests the mock has seen.
func (m *MockGenerativeService) ImageCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GenerateImageCalls)
}
