//go:build unit

package core

import (
	"book-portal/internal/adapter"
	"book-portal/internal/core/model"
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// memCreds is an in-memory CredentialStore.
type memCreds struct {
	mu    sync.Mutex
	value string
	saves int
}

func (m *memCreds) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *memCreds) Save(_ context.Context, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = credential
	m.saves++
	return nil
}

func (m *memCreds) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
	return nil
}

func (m *memCreds) get() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// navRecorder records every navigation request.
type navRecorder struct {
	mu     sync.Mutex
	routes []string
}

func (n *navRecorder) Navigate(to string) {
	n.mu.Lock()
	n.routes = append(n.routes, to)
	n.mu.Unlock()
}

func (n *navRecorder) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

func (n *navRecorder) count(to string) int {
	c := 0
	for _, r := range n.all() {
		if r == to {
			c++
		}
	}
	return c
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	tok, err := adapter.IssueToken([]byte(testSecret), subject, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func newSession(t *testing.T, role string) (*SessionStore, *navRecorder) {
	t.Helper()
	nav := &navRecorder{}
	s := NewSessionStore(&memCreds{}, nav, nil)
	if role != "" {
		_, err := s.Login(context.Background(), token(t, "user-"+role, role))
		require.NoError(t, err)
	}
	return s, nav
}

// newStub runs the in-memory service over HTTP and returns a client for it.
func newStub(t *testing.T) (*adapter.MemoryCatalog, *adapter.CatalogClient) {
	t.Helper()
	cat := adapter.NewMemoryCatalog()
	srv := httptest.NewServer(adapter.NewStubServer(cat, testSecret, nil).Routes())
	t.Cleanup(srv.Close)
	return cat, adapter.NewCatalogClient(srv.URL, srv.Client(), nil)
}

func seedSuggestions(t *testing.T, cat *adapter.MemoryCatalog, n int) []model.ModerationItem {
	t.Helper()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.ModerationItem, 0, n)
	for i := 1; i <= n; i++ {
		it, err := cat.AddModerationItem(model.ModerationItem{
			Queue:     model.QueueSuggestions,
			Title:     fmt.Sprintf("Suggestion %02d", i),
			Submitter: "reader",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		out = append(out, it)
	}
	return out
}
