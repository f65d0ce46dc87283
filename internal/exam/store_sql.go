package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/examhall/internal/apperr"
)

type Store interface {
	CreateExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)
	ListExams(ctx context.Context, opts ListOpts) ([]Exam, error)
	UpdateExam(ctx context.Context, e Exam) error
	DeleteExam(ctx context.Context, id string) error

	ListQuestions(ctx context.Context, examID string) ([]Question, error)
	GetQuestion(ctx context.Context, id string) (Question, error)
	AddQuestion(ctx context.Context, q Question) error
	UpdateQuestion(ctx context.Context, q Question) error
	DeleteQuestion(ctx context.Context, id string) error

	// HasCompletedSubmission reports whether the candidate has a
	// non-in-progress submission for the exam (controls answer hiding).
	HasCompletedSubmission(ctx context.Context, examID, candidateID string) (bool, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh} }

const examCols = `id, title, description, subject, instructor_id, duration_min,
 total_marks, passing_percentage, is_active, scheduled_start, scheduled_end,
 randomize_questions, created_at, updated_at`

// CreateExam inserts the exam and all its questions in one transaction.
func (s *SQLStore) CreateExam(ctx context.Context, e Exam) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO exams (`+examCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		e.ID, e.Title, e.Description, e.Subject, e.InstructorID, e.DurationMin,
		e.TotalMarks, e.PassingPercentage, e.IsActive,
		nullUnix(e.ScheduledStart), nullUnix(e.ScheduledEnd),
		e.RandomizeQuestions, e.CreatedAt.Unix(), e.UpdatedAt.Unix()); err != nil {
		return err
	}
	for _, q := range e.Questions {
		if err := insertQuestion(ctx, tx, q); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+examCols+` FROM exams WHERE id=$1`, id)
	e, err := scanExam(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, apperr.NotFound("exam not found")
	}
	if err != nil {
		return Exam{}, err
	}
	qs, err := s.ListQuestions(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	e.Questions = qs
	return e, nil
}

func (s *SQLStore) ListExams(ctx context.Context, opts ListOpts) ([]Exam, error) {
	q := `SELECT ` + examCols + ` FROM exams`
	var (
		conds []string
		args  []any
	)
	add := func(cond string, a ...any) {
		args = append(args, a...)
		conds = append(conds, cond)
	}
	switch {
	case opts.Viewer.IsInstructor():
		add(`instructor_id=$`+strconv.Itoa(len(args)+1), opts.Viewer.ID)
	case opts.Viewer.IsCandidate():
		// Candidates only ever see active exams.
		add(`is_active=$`+strconv.Itoa(len(args)+1), true)
	}
	if opts.IsActive != nil && !opts.Viewer.IsCandidate() {
		add(`is_active=$`+strconv.Itoa(len(args)+1), *opts.IsActive)
	}
	if opts.Subject != "" {
		add(`subject=$`+strconv.Itoa(len(args)+1), opts.Subject)
	}
	if opts.Search != "" {
		ph := `$` + strconv.Itoa(len(args)+1)
		add(`(LOWER(title) LIKE `+ph+` OR LOWER(description) LIKE `+ph+` OR LOWER(subject) LIKE `+ph+`)`,
			"%"+strings.ToLower(opts.Search)+"%")
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Exam{}
	for rows.Next() {
		e, err := scanExam(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateExam(ctx context.Context, e Exam) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exams SET title=$1, description=$2, subject=$3, duration_min=$4,
		 total_marks=$5, passing_percentage=$6, is_active=$7, scheduled_start=$8,
		 scheduled_end=$9, randomize_questions=$10, updated_at=$11 WHERE id=$12`,
		e.Title, e.Description, e.Subject, e.DurationMin, e.TotalMarks,
		e.PassingPercentage, e.IsActive, nullUnix(e.ScheduledStart),
		nullUnix(e.ScheduledEnd), e.RandomizeQuestions, time.Now().Unix(), e.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "exam not found")
}

// DeleteExam removes the exam, its questions, and its submissions in one
// transaction, so a failure partway leaves nothing orphaned.
func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE exam_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exam_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res, "exam not found"); err != nil {
		return err
	}
	return tx.Commit()
}

const questionCols = `id, exam_id, question_text, question_type, options_json,
 correct_answer, marks, order_index, created_at`

func (s *SQLStore) ListQuestions(ctx context.Context, examID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionCols+` FROM questions WHERE exam_id=$1 ORDER BY order_index ASC, created_at ASC`,
		examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, apperr.NotFound("question not found")
	}
	return q, err
}

func (s *SQLStore) AddQuestion(ctx context.Context, q Question) error {
	return insertQuestion(ctx, s.db, q)
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) error {
	oj, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET question_text=$1, question_type=$2, options_json=$3,
		 correct_answer=$4, marks=$5, order_index=$6 WHERE id=$7`,
		q.QuestionText, string(q.QuestionType), string(oj), q.CorrectAnswer,
		q.Marks, q.Order, q.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "question not found")
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "question not found")
}

func (s *SQLStore) HasCompletedSubmission(ctx context.Context, examID, candidateID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM submissions WHERE exam_id=$1 AND candidate_id=$2 AND status != 'in-progress'`,
		examID, candidateID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertQuestion(ctx context.Context, ex execer, q Question) error {
	oj, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO questions (`+questionCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		q.ID, q.ExamID, q.QuestionText, string(q.QuestionType), string(oj),
		q.CorrectAnswer, q.Marks, q.Order, q.CreatedAt.Unix())
	return err
}

func scanExam(scan func(...any) error) (Exam, error) {
	var (
		e                    Exam
		start, end           sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := scan(&e.ID, &e.Title, &e.Description, &e.Subject, &e.InstructorID,
		&e.DurationMin, &e.TotalMarks, &e.PassingPercentage, &e.IsActive,
		&start, &end, &e.RandomizeQuestions, &createdAt, &updatedAt); err != nil {
		return Exam{}, err
	}
	e.ScheduledStart = timePtr(start)
	e.ScheduledEnd = timePtr(end)
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return e, nil
}

func scanQuestion(scan func(...any) error) (Question, error) {
	var (
		q         Question
		typ, oj   string
		createdAt int64
	)
	if err := scan(&q.ID, &q.ExamID, &q.QuestionText, &typ, &oj,
		&q.CorrectAnswer, &q.Marks, &q.Order, &createdAt); err != nil {
		return Question{}, err
	}
	q.QuestionType = QuestionType(typ)
	if err := json.Unmarshal([]byte(oj), &q.Options); err != nil {
		return Question{}, err
	}
	q.CreatedAt = time.Unix(createdAt, 0).UTC()
	return q, nil
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func requireRow(res sql.Result, notFoundMsg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(notFoundMsg)
	}
	return nil
}
