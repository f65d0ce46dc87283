package submission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/examhall/internal/apperr"
	"github.com/mind-engage/examhall/internal/audit"
	"github.com/mind-engage/examhall/internal/config"
	"github.com/mind-engage/examhall/internal/exam"
	"github.com/mind-engage/examhall/internal/grading"
	"github.com/mind-engage/examhall/internal/rbac"
)

// updateAttempts bounds the optimistic-lock retry loop. Conflicts are
// rare (two graders on one submission), so one retry usually suffices.
const updateAttempts = 3

type Service struct {
	store  Store
	exams  exam.Store
	grader grading.Grader
	audit  audit.Recorder
	now    func() time.Time
}

func NewService(store Store, exams exam.Store, grader grading.Grader, rec audit.Recorder) *Service {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{store: store, exams: exams, grader: grader, audit: rec, now: time.Now}
}

// Start opens the candidate's single attempt at the exam: one answer slot
// per question, in the exam's question order. A second start for the same
// (exam, candidate) pair fails with Conflict via the uniqueness constraint,
// whichever caller loses the race.
func (s *Service) Start(ctx context.Context, requester rbac.Principal, examID string) (Submission, error) {
	if !requester.IsCandidate() {
		return Submission{}, apperr.Forbidden("only candidates can take exams")
	}
	e, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return Submission{}, err
	}
	now := s.now().UTC()
	if !e.IsActive {
		return Submission{}, apperr.InvalidState("this exam is not currently active")
	}
	if e.ScheduledStart != nil && now.Before(*e.ScheduledStart) {
		return Submission{}, apperr.InvalidState("exam has not started yet")
	}
	if e.ScheduledEnd != nil && now.After(*e.ScheduledEnd) {
		return Submission{}, apperr.InvalidState("exam has ended")
	}

	answers := make([]Answer, 0, len(e.Questions))
	for _, q := range e.Questions {
		answers = append(answers, Answer{QuestionID: q.ID})
	}
	sub := Submission{
		ID:          uuid.NewString(),
		ExamID:      examID,
		CandidateID: requester.ID,
		Answers:     answers,
		Status:      StatusInProgress,
		StartedAt:   now,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return Submission{}, err
	}
	config.WithContext(ctx).WithField("submission_id", sub.ID).Info("exam started")
	s.audit.Record(ctx, audit.EventSubmissionStarted, sub.ID, requester.ID,
		map[string]any{"exam_id": examID})
	return sub, nil
}

// SaveAnswer overwrites the text of one answer slot while the submission
// is still in progress. Saving never grades anything.
func (s *Service) SaveAnswer(ctx context.Context, requester rbac.Principal, submissionID, questionID, answerText string) (Submission, error) {
	return s.update(ctx, submissionID, func(sub *Submission) error {
		if sub.CandidateID != requester.ID {
			return apperr.Forbidden("not authorized to update this submission")
		}
		if sub.Status != StatusInProgress {
			return apperr.InvalidState("cannot update a submitted exam")
		}
		for i := range sub.Answers {
			if sub.Answers[i].QuestionID == questionID {
				sub.Answers[i].Answer = answerText
				return nil
			}
		}
		return apperr.NotFound("question not found in this submission")
	})
}

// Submit finalizes the attempt: objective answers are auto-graded, essays
// stay unscored for manual review. With no essay questions the submission
// goes straight to graded.
func (s *Service) Submit(ctx context.Context, requester rbac.Principal, submissionID string) (Submission, error) {
	var examID string
	sub, err := s.update(ctx, submissionID, func(sub *Submission) error {
		if sub.CandidateID != requester.ID {
			return apperr.Forbidden("not authorized to submit this exam")
		}
		if sub.Status != StatusInProgress {
			return apperr.InvalidState("exam already submitted")
		}
		e, err := s.exams.GetExam(ctx, sub.ExamID)
		if err != nil {
			return err
		}
		examID = e.ID
		questions := questionIndex(e)

		hasEssay := false
		total := 0.0
		for i := range sub.Answers {
			ans := &sub.Answers[i]
			q, ok := questions[ans.QuestionID]
			if !ok {
				continue // question deleted mid-attempt; nothing to score
			}
			res := s.grader.Grade(grading.Q{
				Type:          string(q.QuestionType),
				Marks:         q.Marks,
				CorrectAnswer: q.CorrectAnswer,
			}, ans.Answer)
			if res.NeedsManual {
				hasEssay = true
				ans.IsCorrect = nil
				ans.MarksObtained = 0
				continue
			}
			ans.IsCorrect = res.Correct
			ans.MarksObtained = res.Marks
			total += res.Marks
		}

		now := s.now().UTC()
		sub.TotalScore = total
		sub.Percentage = percentage(total, e.TotalMarks)
		sub.SubmittedAt = &now
		if hasEssay {
			sub.Status = StatusSubmitted
		} else {
			sub.Status = StatusGraded
			sub.GradedAt = &now
		}
		return nil
	})
	if err != nil {
		return Submission{}, err
	}
	s.audit.Record(ctx, audit.EventSubmissionSubmitted, sub.ID, requester.ID,
		map[string]any{"exam_id": examID, "status": sub.Status, "total_score": sub.TotalScore})
	return sub, nil
}

// GradeEssay records a manual score for one answer and re-derives the
// aggregate fields. Once every essay answer has a verdict the submission
// transitions to graded; later re-grades recompute scores but the status
// never reverts.
func (s *Service) GradeEssay(ctx context.Context, requester rbac.Principal, submissionID, questionID string, marks float64) (Submission, error) {
	wasGraded := false
	sub, err := s.update(ctx, submissionID, func(sub *Submission) error {
		e, err := s.exams.GetExam(ctx, sub.ExamID)
		if err != nil {
			return err
		}
		if !requester.CanManageExam(e.InstructorID) {
			return apperr.Forbidden("not authorized to grade this submission")
		}
		questions := questionIndex(e)
		wasGraded = sub.Status == StatusGraded

		var target *Answer
		for i := range sub.Answers {
			if sub.Answers[i].QuestionID == questionID {
				target = &sub.Answers[i]
				break
			}
		}
		if target == nil {
			return apperr.NotFound("question not found in this submission")
		}
		q, ok := questions[questionID]
		if !ok {
			return apperr.NotFound("question not found")
		}
		if marks < 0 || marks > q.Marks {
			return apperr.Newf(apperr.KindValidation, "marks must be between 0 and %g", q.Marks)
		}

		// The numeric score is the source of truth; the boolean is a
		// display convenience meaning "full marks".
		correct := marks == q.Marks
		target.MarksObtained = marks
		target.IsCorrect = &correct

		total := 0.0
		for _, a := range sub.Answers {
			total += a.MarksObtained
		}
		sub.TotalScore = total
		sub.Percentage = percentage(total, e.TotalMarks)

		allGraded := true
		for _, a := range sub.Answers {
			q, ok := questions[a.QuestionID]
			if ok && q.QuestionType == exam.TypeEssay && a.IsCorrect == nil {
				allGraded = false
				break
			}
		}
		if allGraded {
			now := s.now().UTC()
			sub.Status = StatusGraded
			sub.GradedBy = requester.ID
			sub.GradedAt = &now
		}
		return nil
	})
	if err != nil {
		return Submission{}, err
	}
	if sub.Status == StatusGraded && !wasGraded {
		s.audit.Record(ctx, audit.EventSubmissionGraded, sub.ID, requester.ID,
			map[string]any{"total_score": sub.TotalScore, "percentage": sub.Percentage})
	}
	return sub, nil
}

// MyResults lists the candidate's submissions, newest submittedAt first.
func (s *Service) MyResults(ctx context.Context, requester rbac.Principal) ([]Result, error) {
	return s.store.ListByCandidate(ctx, requester.ID)
}

// ExamSubmissions lists every submission for an exam, for its owner or an
// admin.
func (s *Service) ExamSubmissions(ctx context.Context, requester rbac.Principal, examID string) ([]Result, error) {
	e, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !requester.CanManageExam(e.InstructorID) {
		return nil, apperr.Forbidden("not authorized to view submissions for this exam")
	}
	return s.store.ListByExam(ctx, examID)
}

// Get returns one submission: candidates their own, instructors those of
// exams they own, admins any.
func (s *Service) Get(ctx context.Context, requester rbac.Principal, id string) (Result, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	e, err := s.exams.GetExam(ctx, sub.ExamID)
	if err != nil {
		return Result{}, err
	}
	if !requester.CanViewSubmission(sub.CandidateID, e.InstructorID) {
		return Result{}, apperr.Forbidden("not authorized to view this submission")
	}
	return Result{
		Submission: sub,
		Exam: ExamSummary{
			ID:                e.ID,
			Title:             e.Title,
			Subject:           e.Subject,
			TotalMarks:        e.TotalMarks,
			PassingPercentage: e.PassingPercentage,
		},
		Passed: sub.Status == StatusGraded && sub.Percentage >= e.PassingPercentage,
	}, nil
}

// update runs mutate inside an optimistic-lock retry loop: read, mutate,
// conditional write. On a version conflict the submission is re-read and
// mutate re-applied against fresh state.
func (s *Service) update(ctx context.Context, id string, mutate func(*Submission) error) (Submission, error) {
	for attempt := 0; attempt < updateAttempts; attempt++ {
		sub, err := s.store.Get(ctx, id)
		if err != nil {
			return Submission{}, err
		}
		if err := mutate(&sub); err != nil {
			return Submission{}, err
		}
		err = s.store.Update(ctx, sub)
		if errors.Is(err, ErrVersionConflict) {
			config.WithContext(ctx).WithField("submission_id", id).Debug("version conflict, retrying")
			continue
		}
		if err != nil {
			return Submission{}, err
		}
		sub.Version++
		return sub, nil
	}
	return Submission{}, apperr.Conflict("submission is being updated concurrently, try again")
}

func questionIndex(e exam.Exam) map[string]exam.Question {
	m := make(map[string]exam.Question, len(e.Questions))
	for _, q := range e.Questions {
		m[q.ID] = q
	}
	return m
}

// percentage defines the score share as 0 when an exam carries no marks,
// so a zero-mark exam never produces NaN.
func percentage(total, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return total / max * 100
}
