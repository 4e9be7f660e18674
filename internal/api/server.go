package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"campaign-advisor/internal/advisor"
	"campaign-advisor/internal/decision"
	"campaign-advisor/internal/models"
	"campaign-advisor/internal/pipeline"
	"campaign-advisor/internal/store"
	"campaign-advisor/internal/telemetry"
)

// The server depends on narrow interfaces so handlers can be exercised
// without Postgres or Redis behind them.

// CampaignStore is the campaign boundary collaborator.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, p store.CreateCampaignParams) (models.Campaign, error)
	GetCampaign(ctx context.Context, id int64) (models.Campaign, error)
	ListCampaigns(ctx context.Context, limit, offset int) ([]models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id int64, status string) (models.Campaign, error)
}

// AuditReader serves the read side of the audit trail.
type AuditReader interface {
	ListSteps(ctx context.Context, campaignID int64) ([]models.StepRecord, error)
	ListStepsDesc(ctx context.Context, campaignID int64) ([]models.StepRecord, error)
}

// BriefStore persists industry-context snapshots.
type BriefStore interface {
	CreateBrief(ctx context.Context, content string, rawData, archiveRef *string) (models.IndustryBrief, error)
	ListBriefs(ctx context.Context, limit int) ([]models.IndustryBrief, error)
}

// Optimizer runs the optimization pipeline for one campaign.
type Optimizer interface {
	Optimize(ctx context.Context, campaignID int64) (pipeline.Result, error)
}

// Adviser generates advice text for a campaign.
type Adviser interface {
	Advise(ctx context.Context, campaign models.Campaign, items []advisor.ContextItem) (advisor.Advice, error)
}

// ContextSource acquires external industry signals, best effort.
type ContextSource interface {
	Fetch(ctx context.Context) []advisor.ContextItem
}

// AdviceLifecycle owns advice state transitions.
type AdviceLifecycle interface {
	Create(ctx context.Context, campaignID *int64, kind, content string) (models.AdviceRecord, error)
	Approve(ctx context.Context, id string, approve bool, approvedBy *string) (models.AdviceRecord, error)
	Execute(ctx context.Context, id, result string) (models.ExecutionRecord, error)
	List(ctx context.Context, campaignID *int64, status string) ([]models.AdviceRecord, error)
}

// AdviseLimiter bounds advisory backend spend per campaign.
type AdviseLimiter interface {
	AllowCampaign(ctx context.Context, campaignID int64) (bool, error)
}

// Archiver stores raw brief payloads outside the database.
type Archiver interface {
	Archive(ctx context.Context, briefID string, raw []byte) (string, error)
}

// Server wires HTTP handlers for the advisor API.
type Server struct {
	campaigns CampaignStore
	audit     AuditReader
	briefs    BriefStore
	optimizer Optimizer
	adviser   Adviser
	signals   ContextSource
	lifecycle AdviceLifecycle
	limiter   AdviseLimiter
	archiver  Archiver
	logger    *zap.Logger
}

// New constructs the API server.
func New(campaigns CampaignStore, audit AuditReader, briefs BriefStore, optimizer Optimizer, adviser Adviser, signals ContextSource, lifecycle AdviceLifecycle, limiter AdviseLimiter, archiver Archiver, logger *zap.Logger) *Server {
	return &Server{
		campaigns: campaigns,
		audit:     audit,
		briefs:    briefs,
		optimizer: optimizer,
		adviser:   adviser,
		signals:   signals,
		lifecycle: lifecycle,
		limiter:   limiter,
		archiver:  archiver,
		logger:    logger,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Route("/api/campaigns", func(r chi.Router) {
		r.Post("/", s.handleCreateCampaign)
		r.Get("/", s.handleListCampaigns)
		r.Get("/{id}", s.handleGetCampaign)
		r.Post("/{id}/status", s.handleCampaignStatus)
		r.Get("/{id}/decisions", s.handleDecisions)
		r.Get("/{id}/logs", s.handleLogs)
		r.Post("/{id}/optimize", s.handleOptimize)
		r.Post("/{id}/analyze", s.handleAnalyze)
	})

	r.Route("/api/ai", func(r chi.Router) {
		r.Post("/advice", s.handleCreateAdvice)
		r.Get("/advices", s.handleListAdvice)
		r.Post("/advice/{id}/approve", s.handleApproveAdvice)
		r.Post("/advice/{id}/execute", s.handleExecuteAdvice)
		r.Get("/briefs", s.handleListBriefs)
		r.Post("/briefs", s.handleCreateBrief)
	})

	return r
}

type campaignRequest struct {
	Name      string  `json:"name"`
	Product   string  `json:"product"`
	Objective string  `json:"objective"`
	Budget    float64 `json:"budget"`
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.Budget < 0 {
		http.Error(w, "budget must be non-negative", http.StatusBadRequest)
		return
	}
	campaign, err := s.campaigns.CreateCampaign(r.Context(), store.CreateCampaignParams{
		Name:      req.Name,
		Product:   req.Product,
		Objective: req.Objective,
		Budget:    req.Budget,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	campaigns, err := s.campaigns.ListCampaigns(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaigns)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	campaign, err := s.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (s *Server) handleCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if !models.ValidCampaignStatus(req.Status) {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}
	campaign, err := s.campaigns.UpdateCampaignStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	steps, err := s.audit.ListSteps(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// No history is an empty chain, never fabricated sample data.
	writeJSON(w, http.StatusOK, map[string]any{"decisionFlow": decision.BuildChain(steps)})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	steps, err := s.audit.ListStepsDesc(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agentLogs": decision.BuildLogView(steps)})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	result, err := s.optimizer.Optimize(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type analyzeRequest struct {
	Record bool `json:"record"`
}

type analyzeResponse struct {
	Context []advisor.ContextItem `json:"context"`
	Advice  string                `json:"advice"`
	Backend string                `json:"backend,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var req analyzeRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means defaults
	}

	campaign, err := s.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.limiter != nil {
		allowed, err := s.limiter.AllowCampaign(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			http.Error(w, "advisory rate limited", http.StatusTooManyRequests)
			return
		}
	}

	items := s.signals.Fetch(r.Context())
	advice, err := s.adviser.Advise(r.Context(), campaign, items)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Optionally persist real backend output as a pending proposal. The
	// not-configured sentinel is valid output but not a proposal.
	if req.Record && advice.Backend != "" {
		if _, err := s.lifecycle.Create(r.Context(), &id, "analysis", advice.Text); err != nil {
			s.writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, analyzeResponse{Context: items, Advice: advice.Text, Backend: advice.Backend})
}

type adviceRequest struct {
	CampaignID *int64 `json:"campaign_id"`
	Type       string `json:"type"`
	Content    string `json:"content"`
}

func (s *Server) handleCreateAdvice(w http.ResponseWriter, r *http.Request) {
	var req adviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	advice, err := s.lifecycle.Create(r.Context(), req.CampaignID, req.Type, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, advice)
}

func (s *Server) handleListAdvice(w http.ResponseWriter, r *http.Request) {
	var campaignID *int64
	if v := r.URL.Query().Get("campaign_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid campaign_id", http.StatusBadRequest)
			return
		}
		campaignID = &id
	}
	advices, err := s.lifecycle.List(r.Context(), campaignID, r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advices)
}

type approveRequest struct {
	Approve    bool    `json:"approve"`
	ApprovedBy *string `json:"approved_by"`
}

func (s *Server) handleApproveAdvice(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	advice, err := s.lifecycle.Approve(r.Context(), chi.URLParam(r, "id"), req.Approve, req.ApprovedBy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advice)
}

func (s *Server) handleExecuteAdvice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	exec, err := s.lifecycle.Execute(r.Context(), chi.URLParam(r, "id"), req.Result)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleListBriefs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	briefs, err := s.briefs.ListBriefs(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, briefs)
}

type briefRequest struct {
	Content string `json:"content"`
	RawData string `json:"raw_data"`
}

func (s *Server) handleCreateBrief(w http.ResponseWriter, r *http.Request) {
	var req briefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	var rawData, archiveRef *string
	if req.RawData != "" {
		rawData = &req.RawData
		if s.archiver != nil {
			// Archiving is best effort; the brief row is the record.
			if ref, err := s.archiver.Archive(r.Context(), uuid.New().String(), []byte(req.RawData)); err != nil {
				s.logger.Warn("archive brief payload", zap.Error(err))
			} else {
				archiveRef = &ref
			}
		}
	}

	brief, err := s.briefs.CreateBrief(r.Context(), req.Content, rawData, archiveRef)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, brief)
}

func campaignID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeError maps the shared sentinels onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrBackendFailure):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		s.logger.Error("internal error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
