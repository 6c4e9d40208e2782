package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"contentfactory/internal/api"
	"contentfactory/internal/approval"
	"contentfactory/internal/config"
	"contentfactory/internal/healer"
	"contentfactory/internal/ipc"
	"contentfactory/internal/logging"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/services/slack"
	"contentfactory/internal/store"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 50
)

type apiServer struct {
	bind          string
	token         string
	signingSecret string
	logger        *slog.Logger
	daemon        *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:          strings.TrimSpace(cfg.API.Bind),
		token:         strings.TrimSpace(cfg.API.Token),
		signingSecret: strings.TrimSpace(cfg.Slack.SigningSecret),
		logger:        logging.NewComponentLogger(logger, "api-server"),
		daemon:        d,
	}
	if cfg.SlackEventsUnreachable() {
		logging.WarnWithContext(srv.logger, "slack approval events require the api token", "slack_events_unauthenticated",
			logging.String(logging.FieldErrorHint, "set slack.signing_secret so Slack can deliver reactions and replies"),
		)
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	auth := func(h http.HandlerFunc) http.HandlerFunc { return requireToken(s.token, h) }

	mux.HandleFunc("GET /api/status", auth(s.handleStatus))
	mux.HandleFunc("GET /api/runs", auth(s.handleRuns))
	mux.HandleFunc("GET /api/runs/{id}", auth(s.handleRun))
	mux.HandleFunc("GET /api/approvals", auth(s.handleApprovals))
	mux.HandleFunc("POST /api/runs/content", auth(s.handleContentRun))
	mux.HandleFunc("POST /api/runs/podcast", auth(s.handlePodcastRun))
	mux.HandleFunc("POST /api/runs/seo", auth(s.handleSEORun))
	mux.HandleFunc("POST /api/healer", auth(s.handleHealer))
	mux.HandleFunc("POST /api/batch", auth(s.handleBatch))
	mux.HandleFunc("POST /api/pending", auth(s.handlePending))
	mux.HandleFunc("POST /api/approvals/{id}/decision", auth(s.handleDecision))
	// Slack cannot send the bearer token. Signed requests skip it; without a
	// signing secret the token still applies.
	slackEvents := s.handleSlackEvents
	if s.signingSecret == "" {
		slackEvents = auth(slackEvents)
	}
	mux.HandleFunc("POST /api/approvals/slack", slackEvents)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var statuses []store.RunStatus
	for _, value := range query["status"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			statuses = append(statuses, store.RunStatus(trimmed))
		}
	}
	limit := defaultListLimit
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	runs, err := s.daemon.store.ListPipelineRuns(r.Context(), limit, statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunListResponse{Runs: api.FromRuns(runs)})
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.daemon.store.GetPipelineRun(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	logs, err := s.daemon.store.ListPipelineLogs(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	approvals, err := s.daemon.store.ListApprovals(r.Context(), store.ApprovalQuery{RunID: id})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunDetail{
		Run:       api.FromRun(run),
		Logs:      api.FromLogs(logs),
		Approvals: api.FromApprovals(approvals),
	})
}

func (s *apiServer) handleApprovals(w http.ResponseWriter, r *http.Request) {
	status := store.ApprovalStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	approvals, err := s.daemon.store.ListApprovals(r.Context(), store.ApprovalQuery{Status: status})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ApprovalListResponse{Approvals: api.FromApprovals(approvals)})
}

func (s *apiServer) handleContentRun(w http.ResponseWriter, r *http.Request) {
	var req ipc.ContentRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Workers) > 0 {
		if _, err := s.daemon.orch.Registry().ResolveExecutionOrder(req.Workers); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	s.accept(w, "content", func(ctx context.Context) error {
		return runErr(s.daemon.orch.RunContentPipeline(ctx, pipeline.RunOptions{
			Workers:      req.Workers,
			TestMode:     req.TestMode,
			SkipFailures: req.SkipFailures,
			TopicID:      req.TopicID,
			Trigger:      store.TriggerManual,
		}))
	})
}

func (s *apiServer) handlePodcastRun(w http.ResponseWriter, r *http.Request) {
	var req ipc.PodcastRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.accept(w, "podcast", func(ctx context.Context) error {
		return runErr(s.daemon.orch.RunPodcastAutoPilot(ctx, pipeline.PodcastOptions{TestMode: req.TestMode, Trigger: store.TriggerManual}))
	})
}

func (s *apiServer) handleSEORun(w http.ResponseWriter, r *http.Request) {
	var req ipc.SEORequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Limit < 0 || req.MinScore < 0 || req.MinScore > 100 {
		s.writeError(w, http.StatusBadRequest, "limit must be >= 0 and min_score within 0..100")
		return
	}
	s.accept(w, "seo", func(ctx context.Context) error {
		return runErr(s.daemon.orch.RunSEOOptimizer(ctx, pipeline.SEOOptions{
			Limit:    req.Limit,
			MinScore: req.MinScore,
			TestMode: req.TestMode,
			Trigger:  store.TriggerManual,
		}))
	})
}

func (s *apiServer) handleHealer(w http.ResponseWriter, r *http.Request) {
	req := ipc.HealerRequest{AutoFix: true}
	if !s.decode(w, r, &req) {
		return
	}
	opts := healer.Options{
		CheckAllRecords: req.CheckAllRecords,
		AutoFix:         req.AutoFix,
		TestMode:        req.TestMode,
		Trigger:         store.TriggerManual,
	}
	s.accept(w, "healer", func(ctx context.Context) error {
		_, err := s.daemon.healer.Run(ctx, opts)
		return err
	})
}

func (s *apiServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req ipc.BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		s.writeError(w, http.StatusBadRequest, "items must not be empty")
		return
	}
	s.accept(w, "batch", func(ctx context.Context) error {
		summary := s.daemon.batch.ProcessBatch(ctx, req.Items)
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d batch items failed", summary.Failed, summary.Processed)
		}
		return nil
	})
}

func (s *apiServer) handlePending(w http.ResponseWriter, r *http.Request) {
	var req ipc.PendingRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.accept(w, "pending", func(ctx context.Context) error {
		summary, err := s.daemon.batch.ProcessAllPending(ctx, req.TestMode)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d pending topics failed", summary.Failed, summary.Processed)
		}
		return nil
	})
}

func (s *apiServer) handleDecision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req ipc.DecisionRequest
	if !s.decode(w, r, &req) {
		return
	}
	kind, err := approval.ParseDecisionKind(req.Decision)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	appr, err := s.daemon.store.GetApproval(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if appr == nil {
		s.writeError(w, http.StatusNotFound, "approval not found")
		return
	}
	if appr.Status != store.ApprovalPending {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("approval already %s", appr.Status))
		return
	}
	decision := approval.Decision{Kind: kind, UserID: strings.TrimSpace(req.UserID), Feedback: req.Feedback, At: s.daemon.now()}
	s.accept(w, "decision", func(ctx context.Context) error {
		return runErr(s.daemon.orch.ApplyDecision(ctx, id, decision))
	})
}

func (s *apiServer) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	if s.signingSecret != "" {
		if err := slack.VerifySignature(s.signingSecret,
			r.Header.Get("X-Slack-Request-Timestamp"),
			r.Header.Get("X-Slack-Signature"),
			body, s.daemon.now()); err != nil {
			s.logger.Warn("rejected slack event", logging.Error(err))
			s.writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}
	env, err := slack.ParseEvent(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch env.Type {
	case "url_verification":
		s.writeJSON(w, http.StatusOK, map[string]string{"challenge": env.Challenge})
		return
	case "event_callback":
	default:
		s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	event := env.Event
	ref := event.MessageRef()
	if event.FromBot() || ref == "" {
		s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	var reaction, reply string
	switch event.Type {
	case "reaction_added":
		reaction = event.Reaction
	case "message":
		reply = event.Text
	}
	s.daemon.launch("slack-approval", func(ctx context.Context) error {
		res, err := s.daemon.orch.HandleApprovalEvent(ctx, ref, event.User, reaction, reply)
		if err != nil || res == nil {
			return err
		}
		s.logger.Info("approval event applied",
			logging.String(logging.FieldRunID, res.RunID),
			logging.String("status", string(res.Status)),
			logging.String(logging.FieldEventType, "approval_applied"),
		)
		return nil
	})
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// accept starts fn in the background and acknowledges the request. Run
// progress is visible through /api/runs.
func (s *apiServer) accept(w http.ResponseWriter, name string, fn func(context.Context) error) {
	s.daemon.launch(name, fn)
	s.writeJSON(w, http.StatusAccepted, api.Accepted{Accepted: true, Job: name})
}

// decode reads an optional JSON body into dst. An empty body keeps dst's
// defaults.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
