package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/internal/config"
	"github.com/jakechorley/claim-router/pkg/core/allocator"
	"github.com/jakechorley/claim-router/pkg/core/ingest"
	"github.com/jakechorley/claim-router/pkg/core/services"
	"github.com/jakechorley/claim-router/pkg/db"
)

// maxUploadSize bounds the multipart claims file
const maxUploadSize = 32 << 20

// Handler serves the HTTP API over a claim store
type Handler struct {
	store  db.Database
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a handler. now defaults to time.Now.
func NewHandler(store db.Database, cfg *config.Config, logger *zap.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{store: store, cfg: cfg, logger: logger, now: now}
}

// Members

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := services.ListMembers(r.Context(), h.store, h.logger)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, toMemberDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	member, err := services.CreateMember(r.Context(), h.store, h.logger, services.NewMember{
		Name:           req.Name,
		Username:       req.Username,
		Role:           req.Role,
		IsActive:       active,
		MaxDailyClaims: req.MaxDailyClaims,
		Seniority:      req.Seniority,
		AssignBy:       req.AssignBy,
		Skills:         req.Skills,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(*member))
}

func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var req UpdateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	update := services.MemberUpdate{
		Role:           req.Role,
		IsActive:       req.IsActive,
		MaxDailyClaims: req.MaxDailyClaims,
		Seniority:      req.Seniority,
		AssignBy:       req.AssignBy,
	}
	if req.Skills != nil {
		update.Skills = *req.Skills
		if update.Skills == nil {
			update.Skills = []string{}
		}
	}

	if _, err := services.UpdateMember(r.Context(), h.store, h.logger, chi.URLParam(r, "id"), update); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Member updated successfully."})
}

// Skills

func (h *Handler) ListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := services.ListSkills(r.Context(), h.store)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]SkillDTO, 0, len(skills))
	for _, s := range skills {
		dtos = append(dtos, toSkillDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSkill(w http.ResponseWriter, r *http.Request) {
	var req CreateSkillRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	skill, err := services.CreateSkill(r.Context(), h.store, h.logger, req.Name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSkillDTO(*skill))
}

// Claims

func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := services.ListClaims(r.Context(), h.store, h.logger)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]ClaimDTO, 0, len(claims))
	for _, c := range claims {
		dtos = append(dtos, toClaimViewDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UploadValidate reads a CSV or XLSX claims file and returns the plan for it. Nothing is written.
func (h *Handler) UploadValidate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "No file part"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "No file part"})
		return
	}
	defer file.Close()

	table, err := ingest.Read(header.Filename, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: fmt.Sprintf("Error reading file: %v", err)})
		return
	}

	candidates, err := ingest.ParseRows(table)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: verr.Message, Errors: verr.Errors})
			return
		}
		h.writeServiceError(w, err)
		return
	}

	result, err := services.PlanClaims(r.Context(), h.store, h.cfg, h.logger, candidates, h.now())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, services.NewPlanDocument(result.Outcome))
}

// UploadExecute commits the assignable claims of a plan previously returned by UploadValidate
func (h *Handler) UploadExecute(w http.ResponseWriter, r *http.Request) {
	doc, err := services.ReadPlanDocument(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: err.Error()})
		return
	}
	if len(doc.AssignableClaims) == 0 {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "No claims provided to execute."})
		return
	}

	planned, err := doc.ToPlanned()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: err.Error()})
		return
	}

	result, err := services.ExecutePlan(r.Context(), h.store, h.logger, planned, h.now())
	switch {
	case errors.Is(err, allocator.ErrEmptyPlan):
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "No claims provided to execute."})
		return
	case errors.Is(err, db.ErrDuplicate):
		writeJSON(w, http.StatusConflict, MessageResponse{Message: fmt.Sprintf("An error occurred during database commit: %v", err)})
		return
	case err != nil:
		h.logger.Error("Failed to execute plan", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: fmt.Sprintf("An error occurred during database commit: %v", err)})
		return
	}

	writeJSON(w, http.StatusCreated, ExecuteResponse{
		Message: fmt.Sprintf("Successfully assigned and created %d claims.", result.CreatedCount),
		Created: result.CreatedCount,
		Skipped: toSkippedDTOs(result.Skipped),
	})
}

// Rules

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := services.ListRules(r.Context(), h.store, h.logger)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]RuleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, toRuleDTO(rule))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := services.CreateRule(r.Context(), h.store, h.logger, services.RuleInput(req))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(*rule))
}

func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := services.UpdateRule(r.Context(), h.store, h.logger, chi.URLParam(r, "id"), services.RuleInput(req))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(*rule))
}

func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := services.DeleteRule(r.Context(), h.store, h.logger, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Member claims

func (h *Handler) ListMemberClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := services.ListMemberClaims(r.Context(), h.store, h.logger, chi.URLParam(r, "memberID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]MemberClaimDTO, 0, len(claims))
	for _, c := range claims {
		dtos = append(dtos, toMemberClaimDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) UpdateMemberClaim(w http.ResponseWriter, r *http.Request) {
	var req UpdateClaimRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := services.UpdateMemberClaim(r.Context(), h.store, h.logger,
		chi.URLParam(r, "memberID"), chi.URLParam(r, "claimID"),
		services.ClaimUpdate{Status: req.Status, Note: req.Note}, h.now())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Claim updated."})
}

// writeServiceError maps service and store errors to HTTP statuses
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrClaimNotFound):
		writeJSON(w, http.StatusNotFound, MessageResponse{Message: "Claim not found or not assigned to you"})
	case errors.Is(err, db.ErrNotFound):
		writeJSON(w, http.StatusNotFound, MessageResponse{Message: err.Error()})
	case errors.Is(err, db.ErrDuplicate):
		writeJSON(w, http.StatusConflict, MessageResponse{Message: err.Error()})
	case errors.Is(err, services.ErrInvalidRule),
		errors.Is(err, services.ErrInvalidMember),
		errors.Is(err, services.ErrInvalidClaimUpdate):
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: err.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: "Internal server error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: fmt.Sprintf("Invalid JSON body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
