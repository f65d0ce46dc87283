package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/mind-engage/examhall/internal/apperr"
	"github.com/mind-engage/examhall/internal/db"
)

// ErrVersionConflict reports a lost optimistic-lock race: the row changed
// between read and write. Callers re-read and retry.
var ErrVersionConflict = errors.New("submission version conflict")

type Store interface {
	Create(ctx context.Context, sub Submission) error
	Get(ctx context.Context, id string) (Submission, error)
	// Update writes the submission if the stored version still matches
	// sub.Version, bumping it by one. ErrVersionConflict otherwise.
	Update(ctx context.Context, sub Submission) error
	ListByCandidate(ctx context.Context, candidateID string) ([]Result, error)
	ListByExam(ctx context.Context, examID string) ([]Result, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh} }

func (s *SQLStore) Create(ctx context.Context, sub Submission) error {
	aj, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, exam_id, candidate_id, answers_json, total_score,
		  percentage, status, started_at, submitted_at, graded_by, graded_at, version)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,0)`,
		sub.ID, sub.ExamID, sub.CandidateID, string(aj), sub.TotalScore,
		sub.Percentage, string(sub.Status), sub.StartedAt.Unix(),
		nullUnix(sub.SubmittedAt), nullString(sub.GradedBy), nullUnix(sub.GradedAt))
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("you have already taken this exam")
	}
	return err
}

const submissionCols = `id, exam_id, candidate_id, answers_json, total_score,
 percentage, status, started_at, submitted_at, graded_by, graded_at, version`

func (s *SQLStore) Get(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE id=$1`, id)
	sub, err := scanSubmission(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, apperr.NotFound("submission not found")
	}
	return sub, err
}

func (s *SQLStore) Update(ctx context.Context, sub Submission) error {
	aj, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET answers_json=$1, total_score=$2, percentage=$3,
		  status=$4, submitted_at=$5, graded_by=$6, graded_at=$7, version=version+1
		 WHERE id=$8 AND version=$9`,
		string(aj), sub.TotalScore, sub.Percentage, string(sub.Status),
		nullUnix(sub.SubmittedAt), nullString(sub.GradedBy), nullUnix(sub.GradedAt),
		sub.ID, sub.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Results are ordered newest submittedAt first; in-progress rows sort last
// by start time.
const resultOrder = ` ORDER BY COALESCE(s.submitted_at, 0) DESC, s.started_at DESC`

const resultCols = `s.id, s.exam_id, s.candidate_id, s.answers_json, s.total_score,
 s.percentage, s.status, s.started_at, s.submitted_at, s.graded_by, s.graded_at, s.version,
 e.id, e.title, e.subject, e.total_marks, e.passing_percentage`

func (s *SQLStore) ListByCandidate(ctx context.Context, candidateID string) ([]Result, error) {
	return s.listWhere(ctx, `s.candidate_id=$1`, candidateID)
}

func (s *SQLStore) ListByExam(ctx context.Context, examID string) ([]Result, error) {
	return s.listWhere(ctx, `s.exam_id=$1`, examID)
}

func (s *SQLStore) listWhere(ctx context.Context, where string, arg any) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultCols+` FROM submissions s JOIN exams e ON e.id = s.exam_id
		 WHERE `+where+resultOrder, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		var (
			r          Result
			aj, status string
			startedAt  int64
			submitted  sql.NullInt64
			gradedBy   sql.NullString
			gradedAt   sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.ExamID, &r.CandidateID, &aj, &r.TotalScore,
			&r.Percentage, &status, &startedAt, &submitted, &gradedBy, &gradedAt, &r.Version,
			&r.Exam.ID, &r.Exam.Title, &r.Exam.Subject, &r.Exam.TotalMarks,
			&r.Exam.PassingPercentage); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(aj), &r.Answers); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		r.StartedAt = time.Unix(startedAt, 0).UTC()
		r.SubmittedAt = timePtr(submitted)
		r.GradedBy = gradedBy.String
		r.GradedAt = timePtr(gradedAt)
		r.Passed = r.Status == StatusGraded && r.Percentage >= r.Exam.PassingPercentage
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSubmission(scan func(...any) error) (Submission, error) {
	var (
		sub        Submission
		aj, status string
		startedAt  int64
		submitted  sql.NullInt64
		gradedBy   sql.NullString
		gradedAt   sql.NullInt64
	)
	if err := scan(&sub.ID, &sub.ExamID, &sub.CandidateID, &aj, &sub.TotalScore,
		&sub.Percentage, &status, &startedAt, &submitted, &gradedBy, &gradedAt,
		&sub.Version); err != nil {
		return Submission{}, err
	}
	if err := json.Unmarshal([]byte(aj), &sub.Answers); err != nil {
		return Submission{}, err
	}
	sub.Status = Status(status)
	sub.StartedAt = time.Unix(startedAt, 0).UTC()
	sub.SubmittedAt = timePtr(submitted)
	sub.GradedBy = gradedBy.String
	sub.GradedAt = timePtr(gradedAt)
	return sub, nil
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
