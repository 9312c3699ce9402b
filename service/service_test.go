package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/config"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/mist"
)

// recorder is a Publisher that keeps every published message
type recorder struct {
	mu          sync.Mutex
	messages    []*message.Message
	initErr     error
	publishErrs []error
	initialized bool
	cleanups    int
}

func (r *recorder) Initialize(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = r.initErr == nil
	return r.initErr
}

func (r *recorder) Publish(_ context.Context, msg *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.publishErrs) > 0 {
		err := r.publishErrs[0]
		r.publishErrs = r.publishErrs[1:]
		return err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recorder) Cleanup(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups++
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recorder) last() *message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return nil
	}
	return r.messages[len(r.messages)-1]
}

func (r *recorder) cleanupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanups
}

func (r *recorder) factory() PublisherFactory {
	return func() (Publisher, error) { return r, nil }
}

var (
	specOnce sync.Once
	testSpec *mist.Specification
	specErr  error
)

func spec(t *testing.T) *mist.Specification {
	t.Helper()
	specOnce.Do(func() {
		testSpec, specErr = mist.New(config.New())
	})
	require.NoError(t, specErr)
	return testSpec
}

func standardFields(extra ...*message.Field) []*message.Field {
	return append([]*message.Field{
		message.NewStringField("MISSION-ID", "MISSION"),
		message.NewStringField("COMPONENT", "COMP"),
		message.NewStringField("PUBLISH-TIME", "2024-100-12:00:00.000"),
	}, extra...)
}

func counterOf(t *testing.T, msg *message.Message) int64 {
	t.Helper()
	v, err := msg.I64Value("COUNTER")
	require.NoError(t, err)
	return v
}

func errorsN(n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = fmt.Errorf("broker unavailable (%d)", i+1)
	}
	return out
}
