// Package server exposes the pipeline over HTTP next to health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comigor/invoicebot-go/internal/history"
	"github.com/comigor/invoicebot-go/internal/logger"
	"github.com/comigor/invoicebot-go/internal/pipeline"
)

// Processor handles one message; *pipeline.Pipeline implements it.
type Processor interface {
	Process(ctx context.Context, msg pipeline.Message) (pipeline.Reply, error)
}

// HistoryReader lists recorded exchanges; *history.Store implements it.
type HistoryReader interface {
	List(ctx context.Context, chatID string, limit int) ([]history.Exchange, error)
}

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// MessageResponse is the answer to POST /v1/messages.
type MessageResponse struct {
	ExchangeID string `json:"exchange_id"`
	Reply      string `json:"reply"`
	Outcome    string `json:"outcome"`
}

// ErrorResponse is the JSON body of every error answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server wires the HTTP routes.
type Server struct {
	proc           Processor
	history        HistoryReader
	gatherer       prometheus.Gatherer
	messageTimeout time.Duration
}

func New(proc Processor, hist HistoryReader, gatherer prometheus.Gatherer, messageTimeout time.Duration) *Server {
	return &Server{proc: proc, history: hist, gatherer: gatherer, messageTimeout: messageTimeout}
}

// Router builds the handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", s.handleMessage)
		if s.history != nil {
			r.Get("/chats/{chatID}/exchanges", s.handleExchanges)
		}
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.messageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.messageTimeout)
		defer cancel()
	}

	reply, err := s.proc.Process(ctx, pipeline.Message{ChatID: req.ChatID, Text: req.Text})
	if err != nil {
		logger.L.Error("process error", "err", err, "request_id", middleware.GetReqID(r.Context()))
		jsonError(w, "failed to process message", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		ExchangeID: reply.ExchangeID,
		Reply:      reply.Text,
		Outcome:    string(reply.Outcome),
	})
}

func (s *Server) handleExchanges(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	out, err := s.history.List(r.Context(), chi.URLParam(r, "chatID"), limit)
	if err != nil {
		logger.L.Error("history list error", "err", err)
		jsonError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if out == nil {
		out = []history.Exchange{}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("failed to encode response", "error", err)
	}
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, ErrorResponse{Error: message})
}
