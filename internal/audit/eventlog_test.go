package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/examhall/internal/db"
)

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite,
		"file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	repo := NewEventRepo(dbh)
	repo.Record(ctx, EventExamCreated, "exam-1", "user-1", map[string]any{"title": "Quiz"})
	repo.Record(ctx, EventExamDeleted, "exam-1", "user-1", nil)

	events, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, EventExamDeleted, events[0].Type)
	assert.Equal(t, EventExamCreated, events[1].Type)
	assert.Equal(t, "exam-1", events[0].Key)
	assert.Equal(t, "user-1", events[0].Actor)
	assert.JSONEq(t, `{"title":"Quiz"}`, events[1].Data)
	assert.Greater(t, events[0].Offset, events[1].Offset)
}

func TestListCapsLimit(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite,
		"file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	repo := NewEventRepo(dbh)
	repo.Record(ctx, EventSubmissionStarted, "sub-1", "user-1", nil)

	events, err := repo.List(ctx, -5)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
