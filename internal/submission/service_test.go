package submission

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
	"github.com/mind-engage/examhall/internal/exam"
	"github.com/mind-engage/examhall/internal/rbac"
)

type fixture struct {
	db         *sql.DB
	exams      *exam.Service
	subs       *Service
	instructor rbac.Principal
	candidate  rbac.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	examStore := exam.NewSQLStore(dbh)
	f := &fixture{
		db:    dbh,
		exams: exam.NewService(examStore, nil),
		subs:  NewService(NewSQLStore(dbh), examStore, nil, nil),
	}
	f.instructor = f.seedUser(t, rbac.RoleInstructor)
	f.candidate = f.seedUser(t, rbac.RoleCandidate)
	return f
}

func (f *fixture) seedUser(t *testing.T, role rbac.Role) rbac.Principal {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().Unix()
	_, err := f.db.Exec(
		`INSERT INTO users (id, username, email, password_hash, role, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, 'x', $4, 1, $5, $5)`,
		id, "u-"+id[:8], id[:8]+"@example.com", string(role), now)
	require.NoError(t, err)
	return rbac.Principal{ID: id, Role: role}
}

func (f *fixture) createExam(t *testing.T, in exam.CreateInput) exam.Exam {
	t.Helper()
	e, err := f.exams.Create(context.Background(), f.instructor, in)
	require.NoError(t, err)
	return e
}

func objectiveExam() exam.CreateInput {
	return exam.CreateInput{
		Title:             "Geography Quiz",
		Duration:          30,
		TotalMarks:        10,
		PassingPercentage: 50,
		Questions: []exam.QuestionInput{{
			QuestionText:  "Capital of France?",
			QuestionType:  "mcq",
			Options:       []string{"a) London", "b) Paris"},
			CorrectAnswer: "b",
			Marks:         10,
		}},
	}
}

func essayExam() exam.CreateInput {
	return exam.CreateInput{
		Title:             "Essay Exam",
		Duration:          60,
		TotalMarks:        10,
		PassingPercentage: 50,
		Questions: []exam.QuestionInput{{
			QuestionText: "Discuss the causes of the French Revolution.",
			QuestionType: "essay",
			Marks:        10,
		}},
	}
}

func TestObjectiveFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createExam(t, objectiveExam())

	sub, err := f.subs.Start(ctx, f.candidate, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, sub.Status)
	require.Len(t, sub.Answers, 1)
	assert.Equal(t, e.Questions[0].ID, sub.Answers[0].QuestionID)

	// Answer matching is case and whitespace insensitive.
	sub, err = f.subs.SaveAnswer(ctx, f.candidate, sub.ID, e.Questions[0].ID, " B ")
	require.NoError(t, err)
	assert.Equal(t, " B ", sub.Answers[0].Answer)

	sub, err = f.subs.Submit(ctx, f.candidate, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusGraded, sub.Status)
	assert.Equal(t, 10.0, sub.TotalScore)
	assert.Equal(t, 100.0, sub.Percentage)
	require.NotNil(t, sub.Answers[0].IsCorrect)
	assert.True(t, *sub.Answers[0].IsCorrect)
	require.NotNil(t, sub.SubmittedAt)
	require.NotNil(t, sub.GradedAt)
}

func TestWrongAnswerScoresZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createExam(t, objectiveExam())

	sub, err := f.subs.Start(ctx, f.candidate, e.ID)
	require.NoError(t, err)
	_, err = f.subs.SaveAnswer(ctx, f.candidate, sub.ID, e.Questions[0].ID, "a")
	require.NoError(t, err)

	sub, err = f.subs.Submit(ctx, f.candidate, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sub.TotalScore)
	assert.Equal(t, 0.0, sub.Percentage)
	require.NotNil(t, sub.Answers[0].IsCorrect)
	assert.False(t, *sub.Answers[0].IsCorrect)
}

func TestEssayFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createExam(t, essayExam())
	qID := e.Questions[0].ID

	sub, err := f.subs.Start(ctx, f.candidate, e.ID)
	require.NoError(t, err)
	_, err = f.subs.SaveAnswer(ctx, f.candidate, sub.ID, qID, "Taxation and famine.")
	require.NoError(t, err)

	sub, err = f.subs.Submit(ctx, f.candidate, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, sub.Status)
	assert.Equal(t, 0.0, sub.TotalScore)
	assert.Nil(t, sub.Answers[0].IsCorrect)
	assert.Nil(t, sub.GradedAt)

	sub, err = f.subs.GradeEssay(ctx, f.instructor, sub.ID, qID, 7)
	require.NoError(t, err)
	assert.Equal(t, StatusGraded, sub.Status)
	assert.Equal(t, 7.0, sub.TotalScore)
	assert.Equal(t, 70.0, sub.Percentage)
	assert.Equal(t, f.instructor.ID, sub.GradedBy)
	require.NotNil(t, sub.Answers[0].IsCorrect)
	assert.False(t, *sub.Answers[0].IsCorrect)

	// Full marks flips the correctness flag; status stays graded.
	sub, err = f.subs.GradeEssay(ctx, f.instructor, sub.ID, qID, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusGraded, sub.Status)
	assert.Equal(t, 100.0, sub.Percentage)
	assert.True(t, *sub.Answers[0].IsCorrect)
}

func TestGradeEssayBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createExam(t, essayExam())
	qID := e.Questions[0].ID

	sub, err := f.subs.Start(ctx, f.candidate, e.ID)
	require.NoError(t, err)
	sub, err = f.subs.Submit(ctx, f.candidate, sub.ID)
	require.NoError(t, err)

	_, err = f.subs.GradeEssay(ctx, f.instructor, sub.ID, qID, 11)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.subs.GradeEssay(ctx, f.instructor, sub.ID, qID, -1)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	other := f.seedUser(t, rbac.RoleInstructor)
	_, err = f.subs.GradeEssay(ctx, other, sub.ID, qID, 5)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestSingleAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createExam(t, objectiveExam())

	_, err := f.subs.Start(ctx, f.candidate, e.ID)
	require.NoError(t, err)
	_, err = f.subs.Start(ctx, f.candidate, e.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestStartRespectsStateAndSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("inactive exam", func(t *testing.T) {
		in := objectiveExam()
		off := false
		in.IsActive = &off
		e := f.createExam(t, in)
		_, err := f.subs.Start(ctx, f.candidate, e.ID)
		assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	})

	t.Run("before scheduled start", func(t *testing.T) {
		in := objectiveExam()
		start := time.Now().Add(time.Hour).UTC()
		in.ScheduledStart = &start
		e := f.createExam(t, in)
		_, err := f.subs.Start(ctx, f.candidate, e.ID)
		assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	})

	t.Run("after scheduled end", func(t *testing.T) {
		in := objectiveExam()
		start := time.Now().Add(-2 * time.Hour).UTC()
		end := time.Now().Add(-time.Hour).UTC()
		in.ScheduledStart, in.ScheduledEnd = &start, &end
		e := f.createExam(t, in)
		_, err := f.subs.Start(ctx, f.candidate, e.ID)
		assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	})

	t.Run("instructors cannot take exams", func(t *testing.T) {
		e := f.createExam(t, objectiveExam())
		_, err := f.subs.Start(ctx, f.instructor, e.ID)
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})
}

func TestSaveAnswerGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createExam(t, objectiveExam())
	qID := e.Questions[0].ID

	sub, err := f.subs.Start(ctx, f.candidate, e.ID)
	require.NoError(t, err)

	other := f.seedUser(t, rbac.RoleCandidate)
	_, err = f.subs.SaveAnswer(ctx, other, sub.ID, qID, "b")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.subs.SaveAnswer(ctx, f.candidate, sub.ID, "missing-question", "b")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.subs.Submit(ctx, f.candidate, sub.ID)
	require.NoError(t, err)
	_, err = f.subs.SaveAnswer(ctx, f.candidate, sub.ID, qID, "b")
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	_, err = f.subs.Submit(ctx, f.candidate, sub.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestResultsAndAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createExam(t, objectiveExam())

	sub, err := f.subs.Start(ctx, f.candidate, e.ID)
	require.NoError(t, err)
	_, err = f.subs.SaveAnswer(ctx, f.candidate, sub.ID, e.Questions[0].ID, "b")
	require.NoError(t, err)
	_, err = f.subs.Submit(ctx, f.candidate, sub.ID)
	require.NoError(t, err)

	results, err := f.subs.MyResults(ctx, f.candidate)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Geography Quiz", results[0].Exam.Title)
	assert.True(t, results[0].Passed)

	listed, err := f.subs.ExamSubmissions(ctx, f.instructor, e.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	other := f.seedUser(t, rbac.RoleInstructor)
	_, err = f.subs.ExamSubmissions(ctx, other, e.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	got, err := f.subs.Get(ctx, f.candidate, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.Passed)

	stranger := f.seedUser(t, rbac.RoleCandidate)
	_, err = f.subs.Get(ctx, stranger, sub.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestZeroMarkExamAvoidsDivisionByZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := objectiveExam()
	in.TotalMarks = 0
	in.PassingPercentage = 0
	e := f.createExam(t, in)

	sub, err := f.subs.Start(ctx, f.candidate, e.ID)
	require.NoError(t, err)
	_, err = f.subs.SaveAnswer(ctx, f.candidate, sub.ID, e.Questions[0].ID, "b")
	require.NoError(t, err)
	sub, err = f.subs.Submit(ctx, f.candidate, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sub.Percentage)
}

func TestStoreUpdateVersionConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createExam(t, objectiveExam())
	store := NewSQLStore(f.db)

	sub, err := f.subs.Start(ctx, f.candidate, e.ID)
	require.NoError(t, err)

	fresh, err := store.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, fresh))

	// A second write against the stale version must not win.
	err = store.Update(ctx, fresh)
	assert.ErrorIs(t, err, ErrVersionConflict)
}
