//go:build unit

package web

import (
	"book-portal/internal/core"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNavigator(t *testing.T) {
	n := NewNavigator()
	_, ok := n.Take()
	assert.False(t, ok)

	n.Navigate("/books?page=2")
	n.Navigate("/books?page=3")
	to, ok := n.Take()
	assert.True(t, ok)
	assert.Equal(t, "/books?page=3", to)

	// losing the session outranks later page changes
	n.Navigate(core.RouteLogin)
	n.Navigate("/books")
	to, _ = n.Take()
	assert.Equal(t, core.RouteLogin, to)
	_, ok = n.Take()
	assert.False(t, ok)
}
