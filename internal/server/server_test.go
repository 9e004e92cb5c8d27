package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/comigor/invoicebot-go/internal/history"
	"github.com/comigor/invoicebot-go/internal/pipeline"
)

type stubProcessor struct {
	reply pipeline.Reply
	err   error
	got   pipeline.Message
}

func (s *stubProcessor) Process(_ context.Context, msg pipeline.Message) (pipeline.Reply, error) {
	s.got = msg
	return s.reply, s.err
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostMessage(t *testing.T) {
	proc := &stubProcessor{reply: pipeline.Reply{ExchangeID: "ex-1", Text: "Customer ACME created.", Outcome: pipeline.OutcomeSummarized}}
	h := New(proc, nil, nil, time.Minute).Router()

	rec := do(t, h, http.MethodPost, "/v1/messages", `{"chat_id":"42","text":"add customer ACME"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, MessageResponse{ExchangeID: "ex-1", Reply: "Customer ACME created.", Outcome: "summarized"}, resp)
	require.Equal(t, pipeline.Message{ChatID: "42", Text: "add customer ACME"}, proc.got)
}

func TestPostMessage_BadRequests(t *testing.T) {
	h := New(&stubProcessor{}, nil, nil, 0).Router()

	for _, body := range []string{`not json`, `{"chat_id":"1"}`, `{"text":"   "}`} {
		rec := do(t, h, http.MethodPost, "/v1/messages", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestPostMessage_FaultIsBadGateway(t *testing.T) {
	h := New(&stubProcessor{err: errors.New("connection refused")}, nil, nil, 0).Router()

	rec := do(t, h, http.MethodPost, "/v1/messages", `{"text":"hi"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.JSONEq(t, `{"error":"failed to process message"}`, rec.Body.String())
}

type stubHistory struct {
	chatID string
	limit  int
	out    []history.Exchange
}

func (s *stubHistory) List(_ context.Context, chatID string, limit int) ([]history.Exchange, error) {
	s.chatID, s.limit = chatID, limit
	return s.out, nil
}

func TestListExchanges(t *testing.T) {
	hist := &stubHistory{out: []history.Exchange{{ID: "a", ChatID: "42", Outcome: "apology"}}}
	h := New(&stubProcessor{}, hist, nil, 0).Router()

	rec := do(t, h, http.MethodGet, "/v1/chats/42/exchanges?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "42", hist.chatID)
	require.Equal(t, 5, hist.limit)

	var out []history.Exchange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	require.Equal(t, "a", out[0].ID)

	rec = do(t, h, http.MethodGet, "/v1/chats/42/exchanges?limit=-1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	hist.out = nil
	rec = do(t, h, http.MethodGet, "/v1/chats/9/exchanges", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "invoicebot_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := New(&stubProcessor{}, nil, reg, 0).Router()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "invoicebot_test_total 1")
}
