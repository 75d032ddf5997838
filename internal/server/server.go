// Package server exposes the pipeline engine over HTTP. The caller's
// identity arrives in X-Actor-ID and X-Actor-Role headers; authentication
// itself happens upstream of this service.
package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/common/logger"
	"placement-pipeline/internal/models"
	"placement-pipeline/internal/pipeline/engine"
)

type Server struct {
	engine *engine.Engine
	log    logger.Logger
	router chi.Router
}

func New(eng *engine.Engine, log logger.Logger) *Server {
	s := &Server{engine: eng, log: log}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/applications", func(r chi.Router) {
			r.Post("/", s.handleSubmitApplication)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetApplication)
				r.Post("/resume-review", s.handleStartResumeReview)
				r.Post("/resume-decision", s.handleResumeDecision)
				r.Post("/assessment", s.handleReleaseAssessment)
				r.Post("/assessment-decision", s.handleAssessmentDecision)
				r.Post("/ai-interview", s.handleCompleteAIInterview)
				r.Post("/ai-decision", s.handleAIDecision)
				r.Post("/assign", s.handleAssignInterviewer)
				r.Post("/schedule", s.handleScheduleInterview)
				r.Post("/feedback", s.handleSubmitFeedback)
				r.Post("/offer", s.handleReleaseOffer)
				r.Post("/offer-decision", s.handleOfferDecision)
			})
		})
		r.Route("/assessments/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetAssessment)
			r.Post("/start", s.handleStartAssessment)
			r.Post("/submit", s.handleSubmitAssessment)
		})
	})

	return r
}

// actorFrom builds the caller identity from request headers.
func actorFrom(r *http.Request) (models.Actor, error) {
	id := r.Header.Get("X-Actor-ID")
	role := models.ActorRole(r.Header.Get("X-Actor-Role"))
	if id == "" {
		return models.Actor{}, errors.NewValidationFailed("missing X-Actor-ID header")
	}
	switch role {
	case models.ActorStudent, models.ActorAdmin, models.ActorInterviewer:
	default:
		return models.Actor{}, errors.NewValidationFailed("missing or unknown X-Actor-Role header")
	}
	return models.Actor{ID: id, Role: role}, nil
}

func (s *Server) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req submitApplicationRequest
	if err := decodeAndValidate(r, submitApplicationSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}

	app, err := s.engine.SubmitApplication(r.Context(), actor, req.JobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, app)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := s.engine.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleStartResumeReview(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	app, err := s.engine.StartResumeReview(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleResumeDecision(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req decisionRequest
	if err := decodeAndValidate(r, decisionSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}

	app, err := s.engine.SetResumeDecision(r.Context(), actor, chi.URLParam(r, "id"), req.Approve, req.Score)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleReleaseAssessment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req releaseAssessmentRequest
	if err := decodeAndValidate(r, releaseAssessmentSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}

	app, assess, err := s.engine.ReleaseAssessment(r.Context(), actor, chi.URLParam(r, "id"), req.DurationMinutes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, releaseAssessmentResponse{Application: app, Assessment: assess})
}

func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		s.writeError(w, err)
		return
	}

	assess, err := s.engine.GetAssessment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assess)
}

func (s *Server) handleStartAssessment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	assess, err := s.engine.StartAssessment(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assess)
}

func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req submitAssessmentRequest
	if err := decodeAndValidate(r, submitAssessmentSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}

	assess, err := s.engine.SubmitAssessment(r.Context(), actor, chi.URLParam(r, "id"), models.AssessmentAnswers{
		MCQAnswers:   req.MCQAnswers,
		CodingAnswer: req.CodingAnswer,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	score := 0
	if assess.Score != nil {
		score = *assess.Score
	}
	s.writeJSON(w, http.StatusOK, submitAssessmentResponse{Assessment: assess, Score: score})
}

func (s *Server) handleAssessmentDecision(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req decisionRequest
	if err := decodeAndValidate(r, decisionSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}

	app, err := s.engine.SetAssessmentDecision(r.Context(), actor, chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleCompleteAIInterview(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req completeAIInterviewRequest
	if err := decodeAndValidate(r, completeAIInterviewSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}

	app, err := s.engine.CompleteAIInterview(r.Context(), actor, chi.URLParam(r, "id"), req.Score)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleAIDecision(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req decisionRequest
	if err := decodeAndValidate(r, decisionSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}

	app, err := s.engine.SetAIInterviewDecision(r.Context(), actor, chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleAssignInterviewer(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req assignInterviewerRequest
	if err := decodeAndValidate(r, assignInterviewerSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}

	iv, err := s.engine.AssignInterviewer(r.Context(), actor, chi.URLParam(r, "id"), models.Round(req.Round))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assignInterviewerResponse{Interviewer: iv})
}

func (s *Server) handleScheduleInterview(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req scheduleInterviewRequest
	if err := decodeAndValidate(r, scheduleInterviewSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}
	when, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		s.writeError(w, errors.NewValidationFailed("scheduledAt must be RFC3339"))
		return
	}

	app, err := s.engine.ScheduleInterview(r.Context(), actor, chi.URLParam(r, "id"), req.MeetingLink, when)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req submitFeedbackRequest
	if err := decodeAndValidate(r, submitFeedbackSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}

	app, err := s.engine.SubmitFeedback(r.Context(), actor, chi.URLParam(r, "id"),
		req.Rating, models.Recommendation(req.Recommendation), req.Comments)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleReleaseOffer(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	app, err := s.engine.ReleaseOffer(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleOfferDecision(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req offerDecisionRequest
	if err := decodeAndValidate(r, offerDecisionSchema, &req); err != nil {
		s.writeError(w, err)
		return
	}

	app, err := s.engine.SetOfferDecision(r.Context(), actor, chi.URLParam(r, "id"), req.Accept)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, app)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	resp := errorResponse{Code: string(code), Message: err.Error()}

	var pe *errors.PipelineError
	if stderrors.As(err, &pe) {
		resp.Message = pe.Message
		resp.Details = pe.Details
	}

	s.writeJSON(w, httpStatus(code), resp)
}

func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeInvalidTransition,
		errors.ErrCodeAlreadyExists,
		errors.ErrCodeAlreadySubmitted,
		errors.ErrCodeNoEligibleInterviewer,
		errors.ErrCodeConcurrencyConflict:
		return http.StatusConflict
	case errors.ErrCodeExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
