package exam

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/examhall/internal/apperr"
	"github.com/mind-engage/examhall/internal/audit"
	"github.com/mind-engage/examhall/internal/config"
	"github.com/mind-engage/examhall/internal/rbac"
)

type Service struct {
	store Store
	audit audit.Recorder
	now   func() time.Time
}

func NewService(store Store, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{store: store, audit: rec, now: time.Now}
}

type QuestionInput struct {
	QuestionText  string   `json:"questionText" validate:"required"`
	QuestionType  string   `json:"questionType" validate:"required"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Marks         float64  `json:"marks" validate:"gte=0"`
}

type CreateInput struct {
	Title              string          `json:"title" validate:"required"`
	Description        string          `json:"description"`
	Subject            string          `json:"subject"`
	Duration           int             `json:"duration" validate:"required,gte=1"`
	TotalMarks         float64         `json:"totalMarks" validate:"gte=0"`
	PassingPercentage  float64         `json:"passingPercentage" validate:"gte=0,lte=100"`
	ScheduledStart     *time.Time      `json:"scheduledStart"`
	ScheduledEnd       *time.Time      `json:"scheduledEnd"`
	RandomizeQuestions bool            `json:"randomizeQuestions"`
	IsActive           *bool           `json:"isActive"`
	Questions          []QuestionInput `json:"questions"`
}

// Create builds the exam and its questions, ordered as given, in one
// atomic write.
func (s *Service) Create(ctx context.Context, requester rbac.Principal, in CreateInput) (Exam, error) {
	if !requester.IsAdmin() && !requester.IsInstructor() {
		return Exam{}, apperr.Forbidden("only instructors can create exams")
	}
	if err := validateSchedule(in.ScheduledStart, in.ScheduledEnd); err != nil {
		return Exam{}, err
	}
	now := s.now().UTC()
	e := Exam{
		ID:                 uuid.NewString(),
		Title:              in.Title,
		Description:        in.Description,
		Subject:            in.Subject,
		InstructorID:       requester.ID,
		DurationMin:        in.Duration,
		TotalMarks:         in.TotalMarks,
		PassingPercentage:  in.PassingPercentage,
		IsActive:           true,
		ScheduledStart:     in.ScheduledStart,
		ScheduledEnd:       in.ScheduledEnd,
		RandomizeQuestions: in.RandomizeQuestions,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
	for i, qi := range in.Questions {
		q, err := buildQuestion(e.ID, qi, i, now)
		if err != nil {
			return Exam{}, err
		}
		e.Questions = append(e.Questions, q)
	}
	if err := s.store.CreateExam(ctx, e); err != nil {
		return Exam{}, err
	}
	config.WithContext(ctx).WithField("exam_id", e.ID).Info("exam created")
	s.audit.Record(ctx, audit.EventExamCreated, e.ID, requester.ID,
		map[string]any{"title": e.Title, "questions": len(e.Questions)})
	return e, nil
}

// Get returns the exam with questions. Instructors may only fetch their
// own exams. Candidates who have not completed the exam get the answer
// key stripped.
func (s *Service) Get(ctx context.Context, requester rbac.Principal, id string) (Exam, error) {
	e, err := s.store.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if requester.IsInstructor() && e.InstructorID != requester.ID {
		return Exam{}, apperr.Forbidden("not authorized to access this exam")
	}
	if requester.IsCandidate() {
		done, err := s.store.HasCompletedSubmission(ctx, id, requester.ID)
		if err != nil {
			return Exam{}, err
		}
		if !done {
			stripAnswers(e.Questions)
		}
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, requester rbac.Principal, opts ListOpts) ([]Exam, error) {
	opts.Viewer = requester
	return s.store.ListExams(ctx, opts)
}

type UpdateInput struct {
	Title              *string    `json:"title"`
	Description        *string    `json:"description"`
	Subject            *string    `json:"subject"`
	Duration           *int       `json:"duration" validate:"omitempty,gte=1"`
	TotalMarks         *float64   `json:"totalMarks" validate:"omitempty,gte=0"`
	PassingPercentage  *float64   `json:"passingPercentage" validate:"omitempty,gte=0,lte=100"`
	IsActive           *bool      `json:"isActive"`
	ScheduledStart     *time.Time `json:"scheduledStart"`
	ScheduledEnd       *time.Time `json:"scheduledEnd"`
	RandomizeQuestions *bool      `json:"randomizeQuestions"`
}

// Update applies only the provided fields and re-validates the schedule.
func (s *Service) Update(ctx context.Context, requester rbac.Principal, id string, in UpdateInput) (Exam, error) {
	e, err := s.requireManageable(ctx, requester, id)
	if err != nil {
		return Exam{}, err
	}
	if in.Title != nil {
		e.Title = *in.Title
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Subject != nil {
		e.Subject = *in.Subject
	}
	if in.Duration != nil {
		e.DurationMin = *in.Duration
	}
	if in.TotalMarks != nil {
		e.TotalMarks = *in.TotalMarks
	}
	if in.PassingPercentage != nil {
		e.PassingPercentage = *in.PassingPercentage
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
	if in.ScheduledStart != nil {
		e.ScheduledStart = in.ScheduledStart
	}
	if in.ScheduledEnd != nil {
		e.ScheduledEnd = in.ScheduledEnd
	}
	if in.RandomizeQuestions != nil {
		e.RandomizeQuestions = *in.RandomizeQuestions
	}
	if e.Title == "" || e.DurationMin < 1 {
		return Exam{}, apperr.Validation("title and a duration of at least 1 minute are required")
	}
	if err := validateSchedule(e.ScheduledStart, e.ScheduledEnd); err != nil {
		return Exam{}, err
	}
	if err := s.store.UpdateExam(ctx, e); err != nil {
		return Exam{}, err
	}
	return s.store.GetExam(ctx, id)
}

// Delete removes the exam together with its questions and submissions.
func (s *Service) Delete(ctx context.Context, requester rbac.Principal, id string) error {
	if _, err := s.requireManageable(ctx, requester, id); err != nil {
		return err
	}
	if err := s.store.DeleteExam(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.EventExamDeleted, id, requester.ID, nil)
	return nil
}

// ListQuestions returns the exam's questions in presentation order, with
// the same answer-hiding rule as Get.
func (s *Service) ListQuestions(ctx context.Context, requester rbac.Principal, examID string) ([]Question, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if requester.IsInstructor() && e.InstructorID != requester.ID {
		return nil, apperr.Forbidden("not authorized to access this exam")
	}
	qs := e.Questions
	if requester.IsCandidate() {
		done, err := s.store.HasCompletedSubmission(ctx, examID, requester.ID)
		if err != nil {
			return nil, err
		}
		if !done {
			stripAnswers(qs)
		}
	}
	return qs, nil
}

// AddQuestion appends a question after the exam's current last one.
func (s *Service) AddQuestion(ctx context.Context, requester rbac.Principal, examID string, in QuestionInput) (Question, error) {
	e, err := s.requireManageable(ctx, requester, examID)
	if err != nil {
		return Question{}, err
	}
	q, err := buildQuestion(examID, in, len(e.Questions), s.now().UTC())
	if err != nil {
		return Question{}, err
	}
	if err := s.store.AddQuestion(ctx, q); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *Service) UpdateQuestion(ctx context.Context, requester rbac.Principal, questionID string, in QuestionInput) (Question, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return Question{}, err
	}
	if _, err := s.requireManageable(ctx, requester, q.ExamID); err != nil {
		return Question{}, err
	}
	updated, err := buildQuestion(q.ExamID, in, q.Order, q.CreatedAt)
	if err != nil {
		return Question{}, err
	}
	updated.ID = q.ID
	if err := s.store.UpdateQuestion(ctx, updated); err != nil {
		return Question{}, err
	}
	return updated, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, requester rbac.Principal, questionID string) error {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if _, err := s.requireManageable(ctx, requester, q.ExamID); err != nil {
		return err
	}
	return s.store.DeleteQuestion(ctx, questionID)
}

func (s *Service) requireManageable(ctx context.Context, requester rbac.Principal, examID string) (Exam, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return Exam{}, err
	}
	if !requester.CanManageExam(e.InstructorID) {
		return Exam{}, apperr.Forbidden("not authorized to modify this exam")
	}
	return e, nil
}

func buildQuestion(examID string, in QuestionInput, order int, createdAt time.Time) (Question, error) {
	typ := QuestionType(in.QuestionType)
	if !typ.Valid() {
		return Question{}, apperr.Newf(apperr.KindValidation, "unknown question type %q", in.QuestionType)
	}
	if in.QuestionText == "" {
		return Question{}, apperr.Validation("question text is required")
	}
	if in.Marks < 0 {
		return Question{}, apperr.Validation("question marks cannot be negative")
	}
	if typ == TypeMCQ && len(in.Options) < 2 {
		return Question{}, apperr.Validation("mcq questions must have at least 2 options")
	}
	if typ.Objective() && in.CorrectAnswer == "" {
		return Question{}, apperr.Validation("a correct answer is required for objective questions")
	}
	return Question{
		ID:            uuid.NewString(),
		ExamID:        examID,
		QuestionText:  in.QuestionText,
		QuestionType:  typ,
		Options:       in.Options,
		CorrectAnswer: in.CorrectAnswer,
		Marks:         in.Marks,
		Order:         order,
		CreatedAt:     createdAt,
	}, nil
}

func validateSchedule(start, end *time.Time) error {
	if start != nil && end != nil && !end.After(*start) {
		return apperr.Validation("scheduled end must be after scheduled start")
	}
	return nil
}

func stripAnswers(qs []Question) {
	for i := range qs {
		qs[i].CorrectAnswer = ""
	}
}
