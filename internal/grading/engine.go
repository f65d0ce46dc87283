// Package grading scores a single answer against its question. Objective
// types (mcq, true-false) are matched automatically; essays are always
// deferred to manual review.
package grading

import "strings"

// Q is the minimal view of a question needed for grading.
type Q struct {
	Type          string
	Marks         float64
	CorrectAnswer string
}

// Result is the outcome of grading one answer.
type Result struct {
	Marks       float64 // marks awarded automatically
	MaxMarks    float64 // the question's full mark value
	Correct     *bool   // nil while the answer awaits manual grading
	NeedsManual bool
}

// Strategy grades a single answer.
type Strategy interface {
	Grade(q Q, answer string) Result
}

// Grader routes by question type to the matching Strategy.
type Grader interface {
	Grade(q Q, answer string) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(q Q, answer string) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		// Unknown types behave like essays: a human decides.
		return Result{MaxMarks: q.Marks, NeedsManual: true}
	}
	return s.Grade(q, answer)
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"mcq":        exactMatchStrategy{},
			"true-false": exactMatchStrategy{},
			"essay":      essayStrategy{},
		},
	}
}

type exactMatchStrategy struct{}

// Grade awards full marks on a case-insensitive, whitespace-trimmed match
// with the answer key, zero otherwise.
func (exactMatchStrategy) Grade(q Q, answer string) Result {
	correct := Normalize(answer) == Normalize(q.CorrectAnswer)
	res := Result{MaxMarks: q.Marks, Correct: &correct}
	if correct {
		res.Marks = q.Marks
	}
	return res
}

type essayStrategy struct{}

func (essayStrategy) Grade(q Q, _ string) Result {
	return Result{MaxMarks: q.Marks, NeedsManual: true}
}

// Normalize is the canonical form answers are compared in.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
