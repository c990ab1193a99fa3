package irc_manager

import (
	"context"
	"io"
	"strings"
	"sync"
)

// MockBackend is an in-memory Backend. Lines fed with Feed are read by the manager, and every
// written line is recorded. Writing QUIT closes the connection the way a server would.
type MockBackend struct {
	mtx        sync.Mutex
	lines      chan string
	closed     chan struct{}
	connected  bool
	connects   int
	sent       []string
	ConnectErr error
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		lines: make(chan string, 1024),
	}
}

func (b *MockBackend) Connect(ctx context.Context) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.connects++
	if b.ConnectErr != nil {
		return b.ConnectErr
	}
	b.closed = make(chan struct{})
	b.connected = true
	return nil
}

func (b *MockBackend) ReadLine() (string, error) {
	b.mtx.Lock()
	closed := b.closed
	connected := b.connected
	b.mtx.Unlock()

	if !connected {
		return "", ErrNotConnected
	}

	select {
	case <-closed:
		return "", io.EOF
	default:
	}

	select {
	case line := <-b.lines:
		return line, nil
	case <-closed:
		return "", io.EOF
	}
}

func (b *MockBackend) WriteLine(line string) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if !b.connected {
		return ErrNotConnected
	}
	b.sent = append(b.sent, line)

	if strings.HasPrefix(line, "QUIT") {
		b.disconnect()
	}
	return nil
}

func (b *MockBackend) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.disconnect()
	return nil
}

func (b *MockBackend) disconnect() {
	if b.connected {
		close(b.closed)
		b.connected = false
	}
}

// Feed queues lines as if the server had sent them.
func (b *MockBackend) Feed(lines ...string) {
	for _, l := range lines {
		b.lines <- l
	}
}

// Sent returns a copy of every line written so far.
func (b *MockBackend) Sent() []string {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	out := make([]string, len(b.sent))
	copy(out, b.sent)
	return out
}

func (b *MockBackend) ClearSent() {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.sent = nil
}

func (b *MockBackend) Connects() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	return b.connects
}

func (b *MockBackend) Connected() bool {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	return b.connected
}
