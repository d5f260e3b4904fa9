package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecollab/internal/models"
	"codecollab/internal/store"
	"codecollab/internal/testhelpers"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := store.Open("mysql", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestCreateSessionDefaults(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateSession(ctx, "s1", "alice"))

	sess, err := st.GetActiveSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, "alice", sess.CreatorName)
	assert.Equal(t, "", sess.Code)
	assert.Equal(t, models.DefaultLanguage, sess.Language)
	assert.True(t, sess.Active)
	assert.False(t, sess.CreatedAt.IsZero())
}

func TestCreateSessionIsInsertOnly(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateSession(ctx, "s1", "alice"))
	require.NoError(t, st.UpdateCode(ctx, "s1", "x = 1", "python"))

	err := st.CreateSession(ctx, "s1", "bob")
	assert.True(t, errors.Is(err, store.ErrDuplicateSession), "got %v", err)

	sess, err := st.GetActiveSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.CreatorName)
	assert.Equal(t, "x = 1", sess.Code)
}

func TestCreateSessionDuplicateOfEndedSession(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateSession(ctx, "s1", "alice"))
	require.NoError(t, st.EndSession(ctx, "s1"))

	err := st.CreateSession(ctx, "s1", "bob")
	assert.ErrorIs(t, err, store.ErrDuplicateSession)

	_, err = st.GetActiveSession(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestGetActiveSessionNotFound(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()

	_, err := st.GetActiveSession(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	require.NoError(t, st.CreateSession(ctx, "gone", "alice"))
	require.NoError(t, st.EndSession(ctx, "gone"))
	_, err = st.GetActiveSession(ctx, "gone")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	sess, err := st.GetSession(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, sess.Active)

	_, err = st.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestUpdateCodeIdempotent(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, "s1", "alice"))

	require.NoError(t, st.UpdateCode(ctx, "s1", "print(1)", "python"))
	first, err := st.GetActiveSession(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, st.UpdateCode(ctx, "s1", "print(1)", "python"))
	second, err := st.GetActiveSession(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Language, second.Language)
	assert.Equal(t, "print(1)", second.Code)
}

func TestUpdateCodeOnInactiveOrUnknownIsNoop(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()

	assert.NoError(t, st.UpdateCode(ctx, "missing", "code", "go"))

	require.NoError(t, st.CreateSession(ctx, "s1", "alice"))
	require.NoError(t, st.UpdateCode(ctx, "s1", "before", "python"))
	require.NoError(t, st.EndSession(ctx, "s1"))
	assert.NoError(t, st.UpdateCode(ctx, "s1", "after", "java"))

	sess, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "before", sess.Code)
	assert.Equal(t, "python", sess.Language)
}

func TestEndSessionIdempotent(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()

	assert.NoError(t, st.EndSession(ctx, "never-existed"))
	require.NoError(t, st.CreateSession(ctx, "s1", "alice"))
	assert.NoError(t, st.EndSession(ctx, "s1"))
	assert.NoError(t, st.EndSession(ctx, "s1"))
}

func TestAppendMessageRejectsBlank(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := st.AppendMessage(ctx, "s1", "alice", text)
		assert.ErrorIs(t, err, store.ErrInvalidMessage)
	}
	msgs, err := st.ListMessages(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAppendMessageAssignsIDs(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, "s1", "alice"))

	first, err := st.AppendMessage(ctx, "s1", "alice", "hi")
	require.NoError(t, err)
	second, err := st.AppendMessage(ctx, "s1", "bob", "hello")
	require.NoError(t, err)

	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, first.Timestamp.IsZero())
	assert.Equal(t, "s1", second.SessionID)
	assert.Equal(t, "bob", second.Sender)
	assert.Equal(t, "hello", second.Message)
}

func TestAppendMessageRequiresActiveSession(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()

	_, err := st.AppendMessage(ctx, "ghost", "alice", "hi")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	require.NoError(t, st.CreateSession(ctx, "s1", "alice"))
	_, err = st.AppendMessage(ctx, "s1", "alice", "before end")
	require.NoError(t, err)
	require.NoError(t, st.EndSession(ctx, "s1"))

	_, err = st.AppendMessage(ctx, "s1", "bob", "after end")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	msgs, err := st.ListMessages(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "before end", msgs[0].Message)
}

func TestListMessagesMostRecentChronological(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, "s1", "alice"))
	require.NoError(t, st.CreateSession(ctx, "other", "bob"))

	for i := 0; i < 5; i++ {
		_, err := st.AppendMessage(ctx, "s1", "alice", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	_, err := st.AppendMessage(ctx, "other", "bob", "elsewhere")
	require.NoError(t, err)

	msgs, err := st.ListMessages(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].Message)
	assert.Equal(t, "m3", msgs[1].Message)
	assert.Equal(t, "m4", msgs[2].Message)

	all, err := st.ListMessages(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestStoreErrorsPropagate(t *testing.T) {
	st := testhelpers.SetupTestStore(t)
	ctx := context.Background()
	testhelpers.DropSessionTable(t, st.DB)

	_, err := st.GetActiveSession(ctx, "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrSessionNotFound)

	assert.Error(t, st.UpdateCode(ctx, "s1", "x", "python"))
	assert.Error(t, st.EndSession(ctx, "s1"))
	_, err = st.AppendMessage(ctx, "s1", "alice", "hi")
	assert.Error(t, err)
	_, err = st.ListMessages(ctx, "s1", 5)
	assert.Error(t, err)
}
