//go:build unit

package core

import (
	"book-portal/internal/core/model"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		cap  Capability
		role model.Role
		want Decision
	}{
		{"anonymous needs session", RequireSession, model.RoleAnonymous, Decision{Redirect: RouteLogin}},
		{"member has session", RequireSession, model.RoleMember, Decision{Allowed: true}},
		{"anonymous needs elevation", RequireElevated, model.RoleAnonymous, Decision{Redirect: RouteLogin}},
		{"member lacks elevation", RequireElevated, model.RoleMember, Decision{Redirect: RouteForbidden}},
		{"author lacks elevation", RequireElevated, model.RoleAuthorVerified, Decision{Redirect: RouteForbidden}},
		{"admin is elevated", RequireElevated, model.RoleAdmin, Decision{Allowed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.cap, tt.role))
		})
	}
}

type unmountCounter struct{ n int }

func (u *unmountCounter) Unmount() { u.n++ }

func TestGuard_EvaluatesEveryTime(t *testing.T) {
	s, _ := newSession(t, "ADMIN")
	g := NewGuard(s, RequireElevated, nil)
	assert.True(t, g.Evaluate().Allowed)

	s.Logout(context.Background())
	assert.Equal(t, Decision{Redirect: RouteLogin}, g.Evaluate())
}

func TestGuard_ProtectUnmountsOnLoss(t *testing.T) {
	s, _ := newSession(t, "ADMIN")
	g := NewGuard(s, RequireElevated, nil)
	v := &unmountCounter{}
	release := g.Protect(v)

	// demoted to a plain member: still a session, no longer elevated
	_, err := s.Login(context.Background(), token(t, "u1", "MEMBER"))
	require.NoError(t, err)
	assert.Equal(t, 1, v.n)

	release()
	release()
	s.Logout(context.Background())
	assert.Equal(t, 1, v.n)
}

func TestGuard_ProtectKeepsViewsWhileAllowed(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	g := NewGuard(s, RequireSession, nil)
	v := &unmountCounter{}
	defer g.Protect(v)()

	_, err := s.Login(context.Background(), token(t, "u2", "AUTHOR"))
	require.NoError(t, err)
	assert.Zero(t, v.n)

	s.HandleAuthorityFailure(context.Background())
	assert.Equal(t, 1, v.n)
}
