package intent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/queue"
	"github.com/acme/direct-calling/internal/telephony"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeProvider struct {
	supported bool
	result    telephony.Result
	err       error
	calls     int
}

func (p *fakeProvider) Supports(context.Context, string) bool { return p.supported }

func (p *fakeProvider) PlaceCall(context.Context, queue.IntentMessage) (telephony.Result, error) {
	p.calls++
	return p.result, p.err
}

type fakeLimiter struct {
	denials  int
	acquired int
	released int
}

func (l *fakeLimiter) Acquire(context.Context, string) (bool, error) {
	if l.denials > 0 {
		l.denials--
		return false, nil
	}
	l.acquired++
	return true, nil
}

func (l *fakeLimiter) Release(context.Context, string) error {
	l.released++
	return nil
}

type fakeStore struct{ launches []domain.Launch }

func (s *fakeStore) AppendLaunch(_ context.Context, l domain.Launch) error {
	s.launches = append(s.launches, l)
	return nil
}

type fakeReceipts struct{ sent []queue.ReceiptMessage }

func (r *fakeReceipts) PublishReceipt(_ context.Context, msg queue.ReceiptMessage) error {
	r.sent = append(r.sent, msg)
	return nil
}

func intentMessage(t *testing.T, action string) kafka.Message {
	t.Helper()
	value, err := json.Marshal(queue.IntentMessage{
		IntentID: uuid.New(),
		DeviceID: "dev-1",
		Action:   action,
		URI:      "tel:5551212",
		Number:   "5551212",
	})
	require.NoError(t, err)
	return kafka.Message{Key: []byte("dev-1"), Value: value}
}

func TestProcessLaunches(t *testing.T) {
	reader := &fakeReader{}
	provider := &fakeProvider{supported: true, result: telephony.Result{Status: domain.LaunchStatusLaunched, Duration: 40 * time.Millisecond}}
	limiter := &fakeLimiter{denials: 1}
	store := &fakeStore{}
	receipts := &fakeReceipts{}

	w := New(Deps{Reader: reader, Provider: provider, Limiter: limiter, Store: store, Receipts: receipts})
	require.NoError(t, w.Process(context.Background(), intentMessage(t, queue.IntentActionCall)))

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, limiter.acquired)
	assert.Equal(t, 1, limiter.released)
	require.Len(t, store.launches, 1)
	assert.Equal(t, domain.LaunchStatusLaunched, store.launches[0].Status)
	require.Len(t, receipts.sent, 1)
	assert.Equal(t, "launched", receipts.sent[0].Status)
	assert.Equal(t, int64(40), receipts.sent[0].DurationMs)
	assert.Equal(t, 1, reader.commits())
}

func TestProcessUnsupportedDevice(t *testing.T) {
	reader := &fakeReader{}
	provider := &fakeProvider{}
	store := &fakeStore{}

	w := New(Deps{Reader: reader, Provider: provider, Store: store})
	require.NoError(t, w.Process(context.Background(), intentMessage(t, queue.IntentActionCall)))

	assert.Zero(t, provider.calls)
	require.Len(t, store.launches, 1)
	assert.Equal(t, domain.LaunchStatusFailed, store.launches[0].Status)
	assert.Equal(t, "device cannot place calls", store.launches[0].Error)
	assert.Equal(t, 1, reader.commits())
}

func TestProcessProviderError(t *testing.T) {
	reader := &fakeReader{}
	provider := &fakeProvider{supported: true, err: errors.New("carrier timeout")}
	receipts := &fakeReceipts{}

	w := New(Deps{Reader: reader, Provider: provider, Receipts: receipts})
	require.NoError(t, w.Process(context.Background(), intentMessage(t, queue.IntentActionCall)))

	require.Len(t, receipts.sent, 1)
	assert.Equal(t, "failed", receipts.sent[0].Status)
	assert.Equal(t, "carrier timeout", receipts.sent[0].Error)
}

func TestProcessSkipsBadMessages(t *testing.T) {
	reader := &fakeReader{}
	provider := &fakeProvider{supported: true}
	w := New(Deps{Reader: reader, Provider: provider})

	err := w.Process(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)

	require.NoError(t, w.Process(context.Background(), intentMessage(t, "android.intent.action.DIAL")))
	assert.Zero(t, provider.calls)
	assert.Equal(t, 2, reader.commits())
}

func TestRunStopsOnCancel(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{intentMessage(t, queue.IntentActionCall)}}
	provider := &fakeProvider{supported: true, result: telephony.Result{Status: domain.LaunchStatusLaunched}}
	w := New(Deps{Reader: reader, Provider: provider})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	reader.mu.Lock()
	assert.True(t, reader.closed)
	reader.mu.Unlock()
}
