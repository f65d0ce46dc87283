package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/examhall/internal/exam"
)

// POST /exams
func CreateExamHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.CreateInput
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		e, err := exams.Create(r.Context(), principal(r), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusCreated, "exam created successfully", e)
	}
}

// GET /exams?subject=&isActive=&search=
func ListExamsHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := exam.ListOpts{
			Subject: r.URL.Query().Get("subject"),
			Search:  r.URL.Query().Get("search"),
		}
		if v := r.URL.Query().Get("isActive"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				opts.IsActive = &b
			}
		}
		list, err := exams.List(r.Context(), principal(r), opts)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondList(w, list)
	}
}

// GET /exams/{id}
func GetExamHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := exams.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondData(w, http.StatusOK, e)
	}
}

// PUT /exams/{id}
func UpdateExamHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.UpdateInput
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		e, err := exams.Update(r.Context(), principal(r), chi.URLParam(r, "id"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "exam updated successfully", e)
	}
}

// DELETE /exams/{id}
func DeleteExamHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := exams.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "exam deleted successfully", nil)
	}
}

// GET /exams/{id}/questions
func ListExamQuestionsHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := exams.ListQuestions(r.Context(), principal(r), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondList(w, qs)
	}
}

// POST /exams/{id}/questions
func AddQuestionHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.QuestionInput
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		q, err := exams.AddQuestion(r.Context(), principal(r), chi.URLParam(r, "id"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusCreated, "question added", q)
	}
}

// PUT /questions/{id}
func UpdateQuestionHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.QuestionInput
		if err := decodeValid(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
		q, err := exams.UpdateQuestion(r.Context(), principal(r), chi.URLParam(r, "id"), in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "question updated", q)
	}
}

// DELETE /questions/{id}
func DeleteQuestionHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := exams.DeleteQuestion(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "question deleted", nil)
	}
}
