package exam

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/examhall/internal/apperr"
	"github.com/mind-engage/examhall/internal/db"
	"github.com/mind-engage/examhall/internal/rbac"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func seedUser(t *testing.T, dbh *sql.DB, role rbac.Role) rbac.Principal {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().Unix()
	_, err := dbh.Exec(
		`INSERT INTO users (id, username, email, password_hash, role, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, 'x', $4, 1, $5, $5)`,
		id, "u-"+id[:8], id[:8]+"@example.com", string(role), now)
	require.NoError(t, err)
	return rbac.Principal{ID: id, Role: role}
}

func mcqInput() CreateInput {
	return CreateInput{
		Title:             "Geography Basics",
		Subject:           "geography",
		Duration:          30,
		TotalMarks:        10,
		PassingPercentage: 50,
		Questions: []QuestionInput{{
			QuestionText:  "Capital of France?",
			QuestionType:  "mcq",
			Options:       []string{"Paris", "London", "Berlin"},
			CorrectAnswer: "Paris",
			Marks:         10,
		}},
	}
}

func TestCreateAndGet(t *testing.T) {
	dbh := testDB(t)
	svc := NewService(NewSQLStore(dbh), nil)
	ctx := context.Background()
	instructor := seedUser(t, dbh, rbac.RoleInstructor)

	e, err := svc.Create(ctx, instructor, mcqInput())
	require.NoError(t, err)
	assert.True(t, e.IsActive)
	require.Len(t, e.Questions, 1)
	assert.Equal(t, 0, e.Questions[0].Order)

	got, err := svc.Get(ctx, instructor, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Geography Basics", got.Title)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "Paris", got.Questions[0].CorrectAnswer)
}

func TestCandidateCannotCreate(t *testing.T) {
	dbh := testDB(t)
	svc := NewService(NewSQLStore(dbh), nil)
	candidate := seedUser(t, dbh, rbac.RoleCandidate)

	_, err := svc.Create(context.Background(), candidate, mcqInput())
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestCreateValidation(t *testing.T) {
	dbh := testDB(t)
	svc := NewService(NewSQLStore(dbh), nil)
	ctx := context.Background()
	instructor := seedUser(t, dbh, rbac.RoleInstructor)

	t.Run("mcq needs two options", func(t *testing.T) {
		in := mcqInput()
		in.Questions[0].Options = []string{"Paris"}
		_, err := svc.Create(ctx, instructor, in)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("objective needs correct answer", func(t *testing.T) {
		in := mcqInput()
		in.Questions[0].CorrectAnswer = ""
		_, err := svc.Create(ctx, instructor, in)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("unknown question type", func(t *testing.T) {
		in := mcqInput()
		in.Questions[0].QuestionType = "matching"
		_, err := svc.Create(ctx, instructor, in)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("schedule end before start", func(t *testing.T) {
		in := mcqInput()
		start := time.Now().Add(2 * time.Hour).UTC()
		end := start.Add(-time.Hour)
		in.ScheduledStart, in.ScheduledEnd = &start, &end
		_, err := svc.Create(ctx, instructor, in)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestCandidateViewHidesAnswers(t *testing.T) {
	dbh := testDB(t)
	svc := NewService(NewSQLStore(dbh), nil)
	ctx := context.Background()
	instructor := seedUser(t, dbh, rbac.RoleInstructor)
	candidate := seedUser(t, dbh, rbac.RoleCandidate)

	e, err := svc.Create(ctx, instructor, mcqInput())
	require.NoError(t, err)

	got, err := svc.Get(ctx, candidate, e.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Questions[0].CorrectAnswer)

	qs, err := svc.ListQuestions(ctx, candidate, e.ID)
	require.NoError(t, err)
	assert.Empty(t, qs[0].CorrectAnswer)
}

func TestInstructorOwnershipEnforced(t *testing.T) {
	dbh := testDB(t)
	svc := NewService(NewSQLStore(dbh), nil)
	ctx := context.Background()
	owner := seedUser(t, dbh, rbac.RoleInstructor)
	other := seedUser(t, dbh, rbac.RoleInstructor)

	e, err := svc.Create(ctx, owner, mcqInput())
	require.NoError(t, err)

	_, err = svc.Get(ctx, other, e.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	title := "Renamed"
	_, err = svc.Update(ctx, other, e.ID, UpdateInput{Title: &title})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	err = svc.Delete(ctx, other, e.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestListScoping(t *testing.T) {
	dbh := testDB(t)
	svc := NewService(NewSQLStore(dbh), nil)
	ctx := context.Background()
	owner := seedUser(t, dbh, rbac.RoleInstructor)
	other := seedUser(t, dbh, rbac.RoleInstructor)
	candidate := seedUser(t, dbh, rbac.RoleCandidate)

	_, err := svc.Create(ctx, owner, mcqInput())
	require.NoError(t, err)

	inactive := mcqInput()
	inactive.Title = "Draft"
	off := false
	inactive.IsActive = &off
	_, err = svc.Create(ctx, owner, inactive)
	require.NoError(t, err)

	mine, err := svc.List(ctx, owner, ListOpts{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := svc.List(ctx, other, ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, theirs)

	// Candidates only see active exams, even when asking for inactive ones.
	visible, err := svc.List(ctx, candidate, ListOpts{IsActive: &off})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "Geography Basics", visible[0].Title)
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	dbh := testDB(t)
	svc := NewService(NewSQLStore(dbh), nil)
	ctx := context.Background()
	instructor := seedUser(t, dbh, rbac.RoleInstructor)

	e, err := svc.Create(ctx, instructor, mcqInput())
	require.NoError(t, err)

	title := "Geography Advanced"
	off := false
	got, err := svc.Update(ctx, instructor, e.ID, UpdateInput{Title: &title, IsActive: &off})
	require.NoError(t, err)
	assert.Equal(t, "Geography Advanced", got.Title)
	assert.False(t, got.IsActive)
	assert.Equal(t, 30, got.DurationMin)
}

func TestQuestionLifecycle(t *testing.T) {
	dbh := testDB(t)
	svc := NewService(NewSQLStore(dbh), nil)
	ctx := context.Background()
	instructor := seedUser(t, dbh, rbac.RoleInstructor)

	e, err := svc.Create(ctx, instructor, mcqInput())
	require.NoError(t, err)

	q, err := svc.AddQuestion(ctx, instructor, e.ID, QuestionInput{
		QuestionText:  "The Earth is flat.",
		QuestionType:  "true-false",
		CorrectAnswer: "false",
		Marks:         5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Order)

	updated, err := svc.UpdateQuestion(ctx, instructor, q.ID, QuestionInput{
		QuestionText:  "The Earth is round.",
		QuestionType:  "true-false",
		CorrectAnswer: "true",
		Marks:         5,
	})
	require.NoError(t, err)
	assert.Equal(t, q.ID, updated.ID)
	assert.Equal(t, 1, updated.Order)

	require.NoError(t, svc.DeleteQuestion(ctx, instructor, q.ID))
	qs, err := svc.ListQuestions(ctx, instructor, e.ID)
	require.NoError(t, err)
	assert.Len(t, qs, 1)
}

func TestDeleteRemovesExam(t *testing.T) {
	dbh := testDB(t)
	svc := NewService(NewSQLStore(dbh), nil)
	ctx := context.Background()
	instructor := seedUser(t, dbh, rbac.RoleInstructor)

	e, err := svc.Create(ctx, instructor, mcqInput())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, instructor, e.ID))

	_, err = svc.Get(ctx, instructor, e.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
