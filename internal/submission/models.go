package submission

import "time"

// Status is the submission lifecycle. in-progress -> submitted -> graded,
// or straight to graded when the exam has no essay questions. graded is
// terminal.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusSubmitted  Status = "submitted"
	StatusGraded     Status = "graded"
)

// Answer is one candidate response, embedded in its submission. IsCorrect
// stays nil until the answer has been graded (tri-state per the manual
// grading flow).
type Answer struct {
	QuestionID    string  `json:"questionId"`
	Answer        string  `json:"answer"`
	IsCorrect     *bool   `json:"isCorrect"`
	MarksObtained float64 `json:"marksObtained"`
}

type Submission struct {
	ID          string     `json:"id"`
	ExamID      string     `json:"examId"`
	CandidateID string     `json:"candidateId"`
	Answers     []Answer   `json:"answers"`
	TotalScore  float64    `json:"totalScore"`
	Percentage  float64    `json:"percentage"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	GradedBy    string     `json:"gradedBy,omitempty"`
	GradedAt    *time.Time `json:"gradedAt,omitempty"`

	// Version guards read-modify-write updates of the derived fields.
	Version int64 `json:"-"`
}

// ExamSummary is the slice of exam fields result views carry along.
type ExamSummary struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Subject           string  `json:"subject,omitempty"`
	TotalMarks        float64 `json:"totalMarks"`
	PassingPercentage float64 `json:"passingPercentage"`
}

// Result is a submission joined with its exam summary and the derived
// pass flag.
type Result struct {
	Submission
	Exam   ExamSummary `json:"exam"`
	Passed bool        `json:"passed"`
}
