package engine

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockModel is a canned synthesis model for tests and offline development.
type MockModel struct {
	Rate           int
	SamplesPerChar int

	mu        sync.Mutex
	generated []string
	closed    bool
}

// NewMockModel returns a model that emits SamplesPerChar silence samples
// per input character at Rate Hz.
func NewMockModel(rate, samplesPerChar int) *MockModel {
	if rate <= 0 {
		rate = 24000
	}
	if samplesPerChar <= 0 {
		samplesPerChar = 10
	}
	return &MockModel{Rate: rate, SamplesPerChar: samplesPerChar}
}

func (m *MockModel) Generate(_ context.Context, text string, _ GenerateOpts) ([]float32, error) {
	m.mu.Lock()
	m.generated = append(m.generated, text)
	m.mu.Unlock()
	return make([]float32, len([]rune(text))*m.SamplesPerChar), nil
}

func (m *MockModel) SampleRate() int { return m.Rate }

func (m *MockModel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Generated returns the texts passed to Generate, in call order.
func (m *MockModel) Generated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.generated))
	copy(out, m.generated)
	return out
}

// Closed reports whether Close was called.
func (m *MockModel) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockLoader counts loads and can be made to fail or stall.
type MockLoader struct {
	Model   *MockModel
	Err     error
	Block   chan struct{} // when non-nil, Load waits for a receive
	loadCnt atomic.Int64
}

func (l *MockLoader) Load(ctx context.Context, _ string) (Model, error) {
	if l.Block != nil {
		select {
		case <-l.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	l.loadCnt.Add(1)
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Model == nil {
		l.Model = NewMockModel(24000, 10)
	}
	return l.Model, nil
}

// Loads returns how many times Load ran to completion.
func (l *MockLoader) Loads() int { return int(l.loadCnt.Load()) }
