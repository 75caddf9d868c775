package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/token-research-api/internal/aggregate"
	"github.com/yourorg/token-research-api/internal/analyze"
	"github.com/yourorg/token-research-api/internal/circuitbreaker"
	"github.com/yourorg/token-research-api/internal/config"
	"github.com/yourorg/token-research-api/internal/model"
	"github.com/yourorg/token-research-api/internal/notify"
	"github.com/yourorg/token-research-api/internal/research"
	"github.com/yourorg/token-research-api/internal/security"
	"github.com/yourorg/token-research-api/internal/source"
	"github.com/yourorg/token-research-api/internal/store"
	"github.com/yourorg/token-research-api/internal/types"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_research_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "status"})

	researchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_research_runs_total",
		Help: "Research runs by outcome.",
	}, []string{"outcome"})

	lastRiskScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "token_research_last_risk_score",
		Help: "Risk score of the most recent research run per token.",
	}, []string{"token"})
)

// marketSource is the primary data provider the handlers talk to.
// *source.CoinGecko satisfies it; tests substitute a fake.
type marketSource interface {
	Identify(ctx context.Context, query string) (source.Identification, error)
	GetCoin(ctx context.Context, id string) (model.TokenSnapshot, error)
	MarketChart(ctx context.Context, id string, days int) ([]model.PricePoint, error)
}

// Server wires the research pipeline behind the HTTP API.
type Server struct {
	cfg config.Config

	market     marketSource
	aggregator *aggregate.Aggregator
	analyzer   *analyze.Analyzer
	builder    *research.Builder
	breaker    *circuitbreaker.CircuitBreaker
	store      *store.Store
	relay      *notify.Discord
	batcher    *notify.Batcher
	signer     *security.Signer
	limiter    *rate.Limiter
}

// NewServer assembles a Server from its dependencies.
func NewServer(cfg config.Config, market marketSource, aggregator *aggregate.Aggregator,
	analyzer *analyze.Analyzer, builder *research.Builder, breaker *circuitbreaker.CircuitBreaker,
	st *store.Store, relay *notify.Discord, batcher *notify.Batcher, signer *security.Signer) *Server {
	return &Server{
		cfg:        cfg,
		market:     market,
		aggregator: aggregator,
		analyzer:   analyzer,
		builder:    builder,
		breaker:    breaker,
		store:      st,
		relay:      relay,
		batcher:    batcher,
		signer:     signer,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.rateLimitMiddleware, metricsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/research", s.handleResearch).Methods(http.MethodPost)
	api.HandleFunc("/research/{id}", s.handleGetResearch).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/webhook/discord", s.handleWebhook).Methods(http.MethodPost)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/circuit", s.handleCircuit).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

// apiError is the error half of the response envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: &apiError{Code: code, Message: message}})
}

// researchRequest is the body of a research run.
type researchRequest struct {
	Query string `json:"query"`
}

// researchResponse carries the run summary plus the full record and its
// optional signature.
type researchResponse struct {
	ID          string               `json:"id"`
	Status      string               `json:"status"`
	Timestamp   string               `json:"timestamp"`
	RedirectURL string               `json:"redirect_url"`
	Research    model.ResearchRecord `json:"research"`
	Signature   *security.Signature  `json:"signature,omitempty"`
}

// handleResearch runs the full pipeline for one token: identify, fetch
// the primary snapshot, fan out to the secondary sources, score, persist
// and relay.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "query is required")
		return
	}

	ctx := r.Context()
	ident, err := s.market.Identify(ctx, req.Query)
	if err != nil {
		researchRuns.WithLabelValues("not_found").Inc()
		respondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no token matched %q", req.Query))
		return
	}

	snap, err := s.snapshotFor(ctx, ident)
	if err != nil {
		researchRuns.WithLabelValues("upstream_error").Inc()
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error())
		return
	}

	agg := s.aggregator.Run(ctx, queryFor(ident, snap), snap.Market.PriceUSD)

	if err := s.breaker.Check(snap.Symbol, agg); err != nil {
		view, ok := s.breaker.LastGoodView(snap.Symbol)
		if !ok {
			researchRuns.WithLabelValues("blocked").Inc()
			respondError(w, http.StatusServiceUnavailable, "CIRCUIT_OPEN", err.Error())
			return
		}
		logrus.WithError(err).WithField("token", snap.Symbol).Warn("serving last known good aggregation")
		agg.Combined = view
	}

	var history []model.PricePoint
	if snap.ID != "" {
		if history, err = s.market.MarketChart(ctx, snap.ID, 30); err != nil {
			logrus.WithError(err).WithField("coin", snap.ID).Warn("price history unavailable")
			history = nil
		}
	}

	var onchainArg *model.OnChain
	if len(agg.SuccessfulSources()) > 0 {
		onchain := research.OnChainView(agg)
		onchainArg = &onchain
	}
	assessment := s.analyzer.Assess(snap, onchainArg)

	record := s.builder.Build(snap, agg, assessment, history)

	signature, err := s.signer.Sign(record)
	if err != nil {
		logrus.WithError(err).WithField("id", record.ID).Warn("report signing failed")
	}

	if err := s.store.SaveResearch(ctx, record); err != nil {
		researchRuns.WithLabelValues("storage_error").Inc()
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to persist research")
		return
	}

	if s.cfg.MonitorEnabled && snap.ID != "" {
		if err := s.store.AddMonitor(ctx, record.ID, record.Token.Ticker, snap.ID,
			snap.Market.PriceUSD, snap.Market.Volume24h); err != nil {
			logrus.WithError(err).WithField("id", record.ID).Warn("failed to register spike monitor")
		}
	}

	s.batcher.Add(notify.Alert{
		Token:        record.Token.Ticker,
		Type:         notify.AlertResearchShare,
		ResearchID:   record.ID,
		RiskScore:    record.Analysis.Score,
		RiskClass:    record.Analysis.Class,
		CurrentPrice: fmt.Sprintf("$%.6f", snap.Market.PriceUSD),
	})

	s.store.LogRequest(ctx, "research", map[string]string{
		"query": req.Query,
		"id":    record.ID,
	}, clientIP(r), r.UserAgent())

	researchRuns.WithLabelValues("completed").Inc()
	lastRiskScore.WithLabelValues(record.Token.Ticker).Set(float64(record.Analysis.Score))

	respond(w, http.StatusOK, researchResponse{
		ID:          record.ID,
		Status:      "completed",
		Timestamp:   record.CreatedAt.UTC().Format(time.RFC3339),
		RedirectURL: "/api/research/" + record.ID,
		Research:    record,
		Signature:   signature,
	})
}

// snapshotFor fetches the primary snapshot for a search-matched coin, or
// derives a minimal one when the query was a raw contract address. The
// analyzer treats the missing fields of an address-only snapshot as
// unknown rather than risky.
func (s *Server) snapshotFor(ctx context.Context, ident source.Identification) (model.TokenSnapshot, error) {
	if ident.CoinID == "" {
		return model.TokenSnapshot{
			ContractAddress: ident.ContractAddress,
			Chain:           string(ident.Chain),
		}, nil
	}

	snap, err := s.market.GetCoin(ctx, ident.CoinID)
	if err != nil {
		return model.TokenSnapshot{}, fmt.Errorf("fetching snapshot for %s: %w", ident.CoinID, err)
	}
	return snap, nil
}

// queryFor builds the fan-out query, preferring the snapshot's contract
// deployment over the raw identification.
func queryFor(ident source.Identification, snap model.TokenSnapshot) source.Query {
	q := source.Query{
		ID:              snap.ID,
		Symbol:          snap.Symbol,
		Name:            snap.Name,
		ContractAddress: snap.ContractAddress,
		Chain:           types.SupportedChain(snap.Chain),
	}
	if q.ContractAddress == "" {
		q.ContractAddress = ident.ContractAddress
		q.Chain = ident.Chain
	}
	return q
}

func (s *Server) handleGetResearch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, err := s.store.GetResearch(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("research %s not found", id))
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to load research")
		return
	}
	respond(w, http.StatusOK, record)
}

// historyResponse is the paged listing envelope.
type historyResponse struct {
	Entries    []model.HistoryEntry `json:"entries"`
	Pagination pagination           `json:"pagination"`
}

type pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := store.HistoryQuery{
		Limit:  intParam(params.Get("limit"), 20),
		Offset: intParam(params.Get("offset"), 0),
		Ticker: params.Get("ticker"),
		Risk:   params.Get("risk"),
		Sort:   params.Get("sort"),
		Order:  params.Get("order"),
	}

	entries, total, err := s.store.History(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to list history")
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}

	respond(w, http.StatusOK, historyResponse{
		Entries: entries,
		Pagination: pagination{
			Total:   total,
			Limit:   q.Limit,
			Offset:  q.Offset,
			HasMore: q.Offset+len(entries) < total,
		},
	})
}

// handleWebhook relays a caller-supplied alert straight to Discord,
// bypassing the batcher so the caller sees delivery errors.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var alert notify.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if alert.Token == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "token is required")
		return
	}

	if err := s.relay.Send(r.Context(), alert); err != nil {
		respondError(w, http.StatusBadGateway, "RELAY_ERROR", err.Error())
		return
	}

	s.store.LogRequest(r.Context(), "webhook", map[string]string{
		"token": alert.Token,
		"type":  alert.Type,
	}, clientIP(r), r.UserAgent())

	respond(w, http.StatusOK, map[string]bool{"sent": s.relay.Enabled()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":        "operational",
		"uptime":        time.Since(startTime).String(),
		"circuit_state": s.breaker.GetState().String(),
		"relay":         s.batcher.Status(),
		"monitor":       s.cfg.MonitorEnabled,
	}
	if s.signer.Enabled() {
		status["signer"] = s.signer.Address()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// handleCircuit reports the breaker state; POST ?action=reset closes it.
func (s *Server) handleCircuit(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"state": s.breaker.GetState().String(),
	}
	if r.Method == http.MethodPost && r.URL.Query().Get("action") == "reset" {
		s.breaker.Reset()
		response["state"] = s.breaker.GetState().String()
		response["message"] = "circuit breaker reset"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
