//go:build unit

package core

import (
	"book-portal/internal/core/model"
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCredential(t *testing.T) {
	assert.NoError(t, ValidateCredential("a.b.c"))
	assert.ErrorIs(t, ValidateCredential(""), model.ErrMalformedCredential)
	assert.ErrorIs(t, ValidateCredential("a.b"), model.ErrMalformedCredential)
	assert.ErrorIs(t, ValidateCredential("a..c"), model.ErrMalformedCredential)
	assert.ErrorIs(t, ValidateCredential("a.b.c.d"), model.ErrMalformedCredential)
}

func TestSessionFromCredential(t *testing.T) {
	sess, err := SessionFromCredential(token(t, "u-42", "ADMIN"))
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, sess.Role)
	assert.Equal(t, "u-42", sess.EntityID)

	// three segments but not a token
	_, err = SessionFromCredential("abc.def.ghi")
	assert.ErrorIs(t, err, model.ErrMalformedCredential)
}

func TestSessionStore_LoginPersistsAndNotifies(t *testing.T) {
	creds := &memCreds{}
	s := NewSessionStore(creds, nil, nil)

	var seen []model.Role
	s.Subscribe(func(sess model.Session, ok bool) {
		if ok {
			seen = append(seen, sess.Role)
		}
	})

	tok := token(t, "u1", "MEMBER")
	sess, err := s.Login(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, sess.Role)
	assert.Equal(t, tok, creds.get())
	assert.Equal(t, []model.Role{model.RoleMember}, seen)

	cred, err := s.Credential()
	require.NoError(t, err)
	assert.Equal(t, tok, cred)
}

func TestSessionStore_LoginRejectsMalformed(t *testing.T) {
	creds := &memCreds{}
	s := NewSessionStore(creds, nil, nil)
	_, err := s.Login(context.Background(), "not-a-token")
	assert.True(t, model.IsAuthority(err))
	_, ok := s.Get()
	assert.False(t, ok)
	assert.Zero(t, creds.saves)
}

func TestSessionStore_InitRestoresCredential(t *testing.T) {
	tok := token(t, "u1", "ADMIN")
	s := NewSessionStore(&memCreds{value: tok}, nil, nil)
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, model.RoleAdmin, s.Role())
}

func TestSessionStore_InitDropsMalformedCredential(t *testing.T) {
	creds := &memCreds{value: "garbage"}
	nav := &navRecorder{}
	s := NewSessionStore(creds, nav, nil)

	require.NoError(t, s.Init(context.Background()))
	_, ok := s.Get()
	assert.False(t, ok)
	assert.Empty(t, creds.get())
	assert.Equal(t, []string{RouteLogin}, nav.all())
}

func TestSessionStore_AuthorityFailureIsIdempotent(t *testing.T) {
	s, nav := newSession(t, "MEMBER")
	var clears atomic.Int32
	s.Subscribe(func(_ model.Session, ok bool) {
		if !ok {
			clears.Add(1)
		}
	})

	// several in-flight requests fail at once
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.HandleAuthorityFailure(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), clears.Load())
	assert.Equal(t, 1, nav.count(RouteLogin))
	assert.Equal(t, model.RoleAnonymous, s.Role())

	_, err := s.Credential()
	assert.ErrorIs(t, err, model.ErrNoSession)
}

func TestSessionStore_LogoutWithoutSessionDoesNothing(t *testing.T) {
	s, nav := newSession(t, "")
	s.Logout(context.Background())
	assert.Empty(t, nav.all())
	assert.False(t, s.Clear(context.Background()))
}

func TestSessionStore_IsAuthorityFailure(t *testing.T) {
	s, _ := newSession(t, "")
	assert.True(t, s.IsAuthorityFailure(401))
	assert.True(t, s.IsAuthorityFailure(403))
	assert.False(t, s.IsAuthorityFailure(409))
	assert.False(t, s.IsAuthorityFailure(500))
}

func TestSessionStore_Unsubscribe(t *testing.T) {
	s, _ := newSession(t, "")
	calls := 0
	unsubscribe := s.Subscribe(func(model.Session, bool) { calls++ })
	_, err := s.Login(context.Background(), token(t, "u1", "MEMBER"))
	require.NoError(t, err)
	unsubscribe()
	s.Logout(context.Background())
	assert.Equal(t, 1, calls)
}
