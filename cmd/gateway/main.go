package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/sirupsen/logrus"

	api "github.com/mind-engage/examhall/internal/api/http"
	"github.com/mind-engage/examhall/internal/audit"
	"github.com/mind-engage/examhall/internal/auth"
	authmw "github.com/mind-engage/examhall/internal/auth/middleware"
	"github.com/mind-engage/examhall/internal/config"
	"github.com/mind-engage/examhall/internal/db"
	"github.com/mind-engage/examhall/internal/exam"
	"github.com/mind-engage/examhall/internal/grading"
	"github.com/mind-engage/examhall/internal/rbac"
	"github.com/mind-engage/examhall/internal/submission"
	"github.com/mind-engage/examhall/internal/user"
)

func main() {
	cfg := config.FromEnv()
	log := config.InitLogger(cfg.Env)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// --- Stores & services ---
	events := audit.NewEventRepo(dbh)
	userStore := user.NewSQLStore(dbh)
	examStore := exam.NewSQLStore(dbh)
	subStore := submission.NewSQLStore(dbh)

	users := user.NewService(userStore)
	exams := exam.NewService(examStore, events)
	subs := submission.NewService(subStore, examStore, grading.NewDefaultGrader(), events)
	tokens := auth.NewService(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)

	if err := users.EnsureAdmin(ctx, cfg); err != nil {
		log.Fatalf("admin bootstrap failed: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, api.RequestLogger, chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public auth endpoints, rate-limited per caller IP.
	r.Group(func(ar chi.Router) {
		ar.Use(httprate.LimitByIP(cfg.AuthRateLimit, cfg.AuthRateWindow))
		ar.Post("/auth/register", api.RegisterHandler(users, tokens))
		ar.Post("/auth/login", api.LoginHandler(users, tokens))
		ar.Post("/auth/refresh", api.RefreshHandler(users, tokens))
	})

	// Protected API (JWT → principal in context → RBAC).
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.RequireAuth(tokens))

		pr.Get("/auth/me", api.MeHandler(users))
		pr.Post("/auth/logout", api.LogoutHandler())

		// Admin: user management and the audit trail.
		pr.Group(func(admin chi.Router) {
			admin.Use(rbac.RequireRole(rbac.RoleAdmin))
			admin.Get("/users", api.ListUsersHandler(users))
			admin.Get("/users/{id}", api.GetUserHandler(users))
			admin.Put("/users/{id}", api.UpdateUserHandler(users))
			admin.Delete("/users/{id}", api.DeleteUserHandler(users))
			admin.Put("/users/{id}/role", api.ChangeRoleHandler(users))
			admin.Put("/users/{id}/status", api.ChangeStatusHandler(users))
			admin.Get("/admin/events", api.ListEventsHandler(events))
		})

		// Exam catalog. Ownership checks live in the services.
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.CreateExamHandler(exams))
		pr.With(rbac.Require("exam:view")).
			Get("/exams", api.ListExamsHandler(exams))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{id}", api.GetExamHandler(exams))
		pr.With(rbac.RequireAny("exam:update-own", "exam:update")).
			Put("/exams/{id}", api.UpdateExamHandler(exams))
		pr.With(rbac.RequireAny("exam:delete-own", "exam:delete")).
			Delete("/exams/{id}", api.DeleteExamHandler(exams))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{id}/questions", api.ListExamQuestionsHandler(exams))
		pr.With(rbac.RequireAny("exam:update-own", "exam:update")).
			Post("/exams/{id}/questions", api.AddQuestionHandler(exams))
		pr.With(rbac.RequireAny("exam:update-own", "exam:update")).
			Put("/questions/{id}", api.UpdateQuestionHandler(exams))
		pr.With(rbac.RequireAny("exam:update-own", "exam:update")).
			Delete("/questions/{id}", api.DeleteQuestionHandler(exams))

		// Submission lifecycle.
		pr.With(rbac.Require("submission:start")).
			Post("/submissions/start", api.StartExamHandler(subs))
		pr.With(rbac.Require("submission:save")).
			Put("/submissions/{id}/answer", api.SaveAnswerHandler(subs))
		pr.With(rbac.Require("submission:submit")).
			Post("/submissions/{id}/submit", api.SubmitExamHandler(subs))
		pr.With(rbac.Require("submission:view-own")).
			Get("/submissions/my-results", api.MyResultsHandler(subs))
		pr.With(rbac.RequireAny("submission:view-exam", "submission:view")).
			Get("/submissions/exam/{examId}", api.ExamSubmissionsHandler(subs))
		pr.With(rbac.Require("submission:grade")).
			Put("/submissions/{id}/grade", api.GradeEssayHandler(subs))
		pr.Get("/submissions/{id}", api.GetSubmissionHandler(subs))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "db": cfg.DBDriver, "env": cfg.Env}).
		Info("listening")
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
