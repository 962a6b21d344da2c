//go:build unit

package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("ADMIN"))
	assert.Equal(t, RoleAdmin, ParseRole(" admin "))
	assert.Equal(t, RoleAuthorVerified, ParseRole("AUTHOR"))
	assert.Equal(t, RoleMember, ParseRole("MEMBER"))
	// a credential always belongs to someone
	assert.Equal(t, RoleMember, ParseRole(""))
	assert.Equal(t, RoleMember, ParseRole("SUPERUSER"))
}

func TestPageQuery_WithFilterResetsPage(t *testing.T) {
	q := PageQuery{Page: 4, PageSize: 10, Filters: map[string]string{"genre": "novela"}}

	out := q.WithFilter("author", "borges")
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, "borges", out.Filter("author"))
	assert.Equal(t, "novela", out.Filter("genre"))
	// the receiver is untouched
	assert.Equal(t, 4, q.Page)
	assert.Empty(t, q.Filter("author"))

	cleared := out.WithFilter("genre", "")
	_, ok := cleared.Filters["genre"]
	assert.False(t, ok)
}

func TestPageQuery_EqualIgnoresEmptyFilters(t *testing.T) {
	a := PageQuery{Page: 2, PageSize: 10, Filters: map[string]string{"title": ""}}
	b := PageQuery{Page: 2, PageSize: 10}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(b.WithPage(3)))
	assert.Equal(t, 1, a.WirePage())
	assert.Equal(t, 0, PageQuery{}.WirePage())
}

func TestPagedResult_OutOfRange(t *testing.T) {
	assert.False(t, PagedResult[int]{TotalPages: 3, CurrentPage: 3}.OutOfRange())
	assert.True(t, PagedResult[int]{TotalPages: 3, CurrentPage: 4}.OutOfRange())
	// an empty listing still has a page 1
	assert.False(t, PagedResult[int]{TotalPages: 0, CurrentPage: 1}.OutOfRange())
	assert.True(t, PagedResult[int]{TotalPages: 0, CurrentPage: 2}.OutOfRange())
}

func TestFlagSet(t *testing.T) {
	s := NewFlagSet("b1", FormatEbook, FormatPaperback)
	assert.True(t, s.Has(FormatEbook))
	assert.Equal(t, []Format{FormatEbook, FormatPaperback}, s.Values())

	added := s.Apply(Mutation[Format]{Owner: "b1", Flag: FormatAudiobook, Op: OpAdd})
	assert.Equal(t, 3, added.Len())
	assert.Equal(t, 2, s.Len())

	removed := added.Apply(Mutation[Format]{Owner: "b1", Flag: FormatEbook, Op: OpRemove})
	assert.False(t, removed.Has(FormatEbook))
	assert.True(t, removed.Equal(NewFlagSet("b1", FormatAudiobook, FormatPaperback)))
	assert.False(t, removed.Equal(NewFlagSet("b2", FormatAudiobook, FormatPaperback)))
}

func TestParseEnums(t *testing.T) {
	f, ok := ParseFormat("HARDCOVER")
	require.True(t, ok)
	assert.Equal(t, FormatHardcover, f)
	_, ok = ParseFormat("vinyl")
	assert.False(t, ok)

	st, ok := ParseStatus("ACCEPTED")
	require.True(t, ok)
	assert.Equal(t, StatusAccepted, st)

	q, ok := ParseQueue("Suggestions")
	require.True(t, ok)
	assert.Equal(t, QueueSuggestions, q)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindAuthority, KindOf(AuthorityError{Status: 401}))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("wrap: %w", ConflictError{Msg: "stale"})))
	assert.Equal(t, KindNetwork, KindOf(NetworkError{Err: errors.New("refused")}))
	assert.Equal(t, KindValidation, KindOf(ValidationError{Field: "title"}))
	assert.Equal(t, KindServer, KindOf(ServerError{Status: 500}))
	assert.Equal(t, KindServer, KindOf(errors.New("unclassified")))

	assert.True(t, KindNetwork.Retryable())
	assert.True(t, KindServer.Retryable())
	assert.False(t, KindAuthority.Retryable())
	assert.False(t, KindValidation.Retryable())

	assert.True(t, IsAuthority(AuthorityError{Err: ErrMalformedCredential}))
	assert.ErrorIs(t, AuthorityError{Err: ErrMalformedCredential}, ErrMalformedCredential)
	assert.NotEmpty(t, Message(KindNetwork))
}
