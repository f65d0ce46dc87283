package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/examhall/internal/audit"
	"github.com/mind-engage/examhall/internal/submission"
)

// POST /submissions/start
func StartExamHandler(subs *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			ExamID string `json:"examId" validate:"required"`
		}
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		sub, err := subs.Start(r.Context(), principal(r), in.ExamID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusCreated, "exam started successfully", sub)
	}
}

// PUT /submissions/{id}/answer
func SaveAnswerHandler(subs *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			QuestionID string `json:"questionId" validate:"required"`
			Answer     string `json:"answer"`
		}
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		sub, err := subs.SaveAnswer(r.Context(), principal(r), chi.URLParam(r, "id"), in.QuestionID, in.Answer)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "answer saved successfully", sub)
	}
}

// POST /submissions/{id}/submit
func SubmitExamHandler(subs *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := subs.Submit(r.Context(), principal(r), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "exam submitted successfully", sub)
	}
}

// PUT /submissions/{id}/grade
func GradeEssayHandler(subs *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			QuestionID    string   `json:"questionId" validate:"required"`
			MarksObtained *float64 `json:"marksObtained" validate:"required"`
		}
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		sub, err := subs.GradeEssay(r.Context(), principal(r), chi.URLParam(r, "id"), in.QuestionID, *in.MarksObtained)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "essay graded successfully", sub)
	}
}

// GET /submissions/my-results
func MyResultsHandler(subs *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := subs.MyResults(r.Context(), principal(r))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondList(w, list)
	}
}

// GET /submissions/exam/{examId}
func ExamSubmissionsHandler(subs *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := subs.ExamSubmissions(r.Context(), principal(r), chi.URLParam(r, "examId"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondList(w, list)
	}
}

// GET /submissions/{id}
func GetSubmissionHandler(subs *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := subs.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondData(w, http.StatusOK, res)
	}
}

// GET /admin/events?limit=
func ListEventsHandler(events *audit.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := events.List(r.Context(), limit)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondList(w, list)
	}
}
