package exam

import (
	"time"

	"github.com/mind-engage/examhall/internal/rbac"
)

type QuestionType string

const (
	TypeMCQ       QuestionType = "mcq"
	TypeTrueFalse QuestionType = "true-false"
	TypeEssay     QuestionType = "essay"
)

func (t QuestionType) Valid() bool {
	switch t {
	case TypeMCQ, TypeTrueFalse, TypeEssay:
		return true
	}
	return false
}

// Objective reports whether answers of this type are auto-graded.
func (t QuestionType) Objective() bool { return t == TypeMCQ || t == TypeTrueFalse }

type Question struct {
	ID            string       `json:"id"`
	ExamID        string       `json:"examId"`
	QuestionText  string       `json:"questionText"`
	QuestionType  QuestionType `json:"questionType"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"` // blanked for candidates mid-exam
	Marks         float64      `json:"marks"`
	Order         int          `json:"order"`
	CreatedAt     time.Time    `json:"createdAt"`
}

type Exam struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Subject            string     `json:"subject,omitempty"`
	InstructorID       string     `json:"instructorId"`
	DurationMin        int        `json:"duration"`
	TotalMarks         float64    `json:"totalMarks"`
	PassingPercentage  float64    `json:"passingPercentage"`
	Questions          []Question `json:"questions,omitempty"`
	IsActive           bool       `json:"isActive"`
	ScheduledStart     *time.Time `json:"scheduledStart,omitempty"`
	ScheduledEnd       *time.Time `json:"scheduledEnd,omitempty"`
	RandomizeQuestions bool       `json:"randomizeQuestions"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type ListOpts struct {
	Subject  string
	IsActive *bool
	Search   string // substring match on title/description/subject, case-insensitive
	Viewer   rbac.Principal
}
