package handler

import (
	"errors"

	"autoapply/internal/delivery/http/middleware"
	"autoapply/internal/domain"
	"autoapply/internal/lifecycle"
	"autoapply/internal/pkg/response"
	"autoapply/internal/repository"
	"autoapply/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type ApplicationHandler struct {
	uc usecase.Orchestrator
}

type submitJobRequest struct {
	URL         string `json:"url"`
	Platform    string `json:"platform"`
	PostingText string `json:"posting_text"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	CandidateID string `json:"candidate_id"`
	ResumeID    string `json:"resume_id"`
	TestMode    bool   `json:"test_mode"`
}

func NewApplicationHandler(uc usecase.Orchestrator) *ApplicationHandler {
	return &ApplicationHandler{uc: uc}
}

func (h *ApplicationHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Post("/applications", h.Submit)
	r.Get("/applications/:id", h.Status)
	r.Post("/applications/:id/approve", h.Approve)
	r.Post("/applications/:id/reject", h.Reject)
	r.Post("/applications/:id/cancel", h.Cancel)
}

// Submit opens an application lifecycle for a posting. The pipeline runs
// asynchronously, so the response is 202 with the application in its
// initial state.
func (h *ApplicationHandler) Submit(c fiber.Ctx) error {
	var req submitJobRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	candidateID, err := uuid.Parse(req.CandidateID)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid candidate_id", nil, err)
	}
	resumeID, err := uuid.Parse(req.ResumeID)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid resume_id", nil, err)
	}

	app, err := h.uc.SubmitJob(c.Context(), usecase.SubmitJobInput{
		URL:         req.URL,
		Platform:    domain.Platform(req.Platform),
		PostingText: req.PostingText,
		Title:       req.Title,
		Company:     req.Company,
		CandidateID: candidateID,
		ResumeID:    resumeID,
		TestMode:    req.TestMode,
	})
	if err != nil {
		return mapOrchestratorError(err)
	}

	return response.Success(c, fiber.StatusAccepted, response.MessageAccepted, app)
}

func (h *ApplicationHandler) Status(c fiber.Ctx) error {
	id, err := applicationIDFromPath(c)
	if err != nil {
		return err
	}

	st, err := h.uc.GetStatus(c.Context(), id)
	if err != nil {
		return mapOrchestratorError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, st)
}

func (h *ApplicationHandler) Approve(c fiber.Ctx) error {
	id, err := applicationIDFromPath(c)
	if err != nil {
		return err
	}
	if err := h.uc.Approve(c.Context(), id); err != nil {
		return mapOrchestratorError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, nil)
}

func (h *ApplicationHandler) Reject(c fiber.Ctx) error {
	id, err := applicationIDFromPath(c)
	if err != nil {
		return err
	}
	if err := h.uc.Reject(c.Context(), id); err != nil {
		return mapOrchestratorError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, nil)
}

func (h *ApplicationHandler) Cancel(c fiber.Ctx) error {
	id, err := applicationIDFromPath(c)
	if err != nil {
		return err
	}
	if err := h.uc.Cancel(c.Context(), id); err != nil {
		return mapOrchestratorError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, nil)
}

func applicationIDFromPath(c fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, middleware.NewAppError(fiber.StatusBadRequest, "Invalid application id", nil, err)
	}
	return id, nil
}

func mapOrchestratorError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return middleware.NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
	case errors.Is(err, usecase.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "Application not found", nil, err)
	case errors.Is(err, repository.ErrActiveExists):
		return middleware.NewAppError(fiber.StatusConflict, "An active application already exists for this job", nil, err)
	case errors.Is(err, lifecycle.ErrTerminalState), errors.Is(err, lifecycle.ErrIllegalTransition):
		return middleware.NewAppError(fiber.StatusConflict, "Application is not awaiting review", nil, err)
	case errors.Is(err, repository.ErrStateConflict):
		return middleware.NewAppError(fiber.StatusConflict, "Application changed state concurrently", nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}
