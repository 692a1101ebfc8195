package window

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	mu     sync.Mutex
	name   string
	url    string
	closed bool
}

func (f *fakeHandle) SetName(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.name = name
	return nil
}

func (f *fakeHandle) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	return nil
}

func (f *fakeHandle) Focus(context.Context) error { return nil }

func (f *fakeHandle) Resize(context.Context, int, int) error { return nil }

func (f *fakeHandle) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeHandle) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestDeferredOperationsWaitForAttach(t *testing.T) {
	p := NewProxy(KindPopup)
	h := &fakeHandle{}

	done := make(chan error, 1)
	go func() {
		done <- p.SetName(context.Background(), "payload")
	}()

	// The operation must not complete before the context exists.
	select {
	case <-done:
		t.Fatal("SetName completed before attach")
	case <-time.After(30 * time.Millisecond):
	}

	p.Attach(h)
	require.NoError(t, <-done)
	assert.Equal(t, "payload", h.name)
}

func TestAttachedProxy(t *testing.T) {
	h := &fakeHandle{}
	p := Attached(KindIFrame, h)

	require.NoError(t, p.Navigate(context.Background(), "https://child.example.com"))
	assert.Equal(t, "https://child.example.com", h.url)
	assert.Equal(t, KindIFrame, p.Kind())
}

func TestIsClosedBeforeAttach(t *testing.T) {
	p := NewProxy(KindPopup)
	assert.False(t, p.IsClosed(), "a context that does not exist cannot be closed")

	h := &fakeHandle{}
	p.Attach(h)
	assert.False(t, p.IsClosed())

	require.NoError(t, h.Close(context.Background()))
	assert.True(t, p.IsClosed())
}

func TestFailRejectsWaiters(t *testing.T) {
	p := NewProxy(KindPopup)
	boom := errors.New("window blocked")
	p.Fail(boom)

	_, err := p.Await(context.Background())
	assert.ErrorIs(t, err, boom)

	err = p.Focus(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCloseDetachedIsNoop(t *testing.T) {
	p := NewProxy(KindIFrame)
	require.NoError(t, p.Close(context.Background()))
}
