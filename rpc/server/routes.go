package server

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"github.com/tenkdog/jarvis/lib/botstate"
	"io"
	"net/http"
)

const (
	// SecretHeader carries the secret configured for the webhook
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

	// maxUpdateSize bounds the body of a webhook request
	maxUpdateSize = 1 << 20
)

func (s *Server) registerRoutes() {
	s.transport.RegisterRoute("GET /{$}", s.handleHealth)
	s.transport.RegisterRoute("GET /status", s.handleStatus)
	s.transport.RegisterRoute("GET /metrics", s.handleMetrics)
	s.transport.RegisterRoute("POST "+s.config.WebhookPath, s.handleWebhook)
}

// --------------------------------------------------------------------------
// Diagnostics
// --------------------------------------------------------------------------

type healthResponse struct {
	Status string `json:"status"`
	Bot    string `json:"bot"`
	CoreOK bool   `json:"core_ok"`
	RtOK   bool   `json:"rt_ok"`
}

// handleHealth reports whether the last remote operation of each dataset succeeded.
// Like /status it never touches the remote store.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Bot: s.config.BotName}
	for _, st := range s.manager.Status() {
		switch st.Dataset {
		case botstate.CoreDataset:
			resp.CoreOK = st.OK()
		case botstate.RuntimeDataset:
			resp.RtOK = st.OK()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Status())
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.manager.WritePrometheus(w)
	metrics.WritePrometheus(w, true)
}

// --------------------------------------------------------------------------
// Webhook
// --------------------------------------------------------------------------

type okResponse struct {
	OK bool `json:"ok"`
}

// handleWebhook processes one update. The datasets are refreshed and flushed around the
// handler, so a request never waits for more than the lock timeout on a concurrent one.
// Every update is acknowledged, the platform would otherwise redeliver it forever.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.config.WebhookSecret != "" && r.Header.Get(SecretHeader) != s.config.WebhookSecret {
		Logger.Warningf("rejected webhook request from %s: invalid secret", r.RemoteAddr)
		writeJSON(w, http.StatusForbidden, okResponse{OK: false})
		return
	}

	// a client that hangs up must not fail remote operations (and trip the breaker)
	ctx := context.WithoutCancel(r.Context())

	s.manager.RefreshAll(ctx)
	s.manager.OpportunisticFlush(ctx)

	update, err := decodeUpdate(http.MaxBytesReader(w, r.Body, maxUpdateSize))
	if err != nil {
		Logger.Warningf("ignoring malformed update: %v", err)
	} else if err := s.dispatch(ctx, update); err != nil {
		Logger.Errorf("failed to handle update %d: %v", update.ID(), err)
	}

	s.manager.OpportunisticFlush(ctx)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// dispatch runs the update handler, turning a panic into an error
func (s *Server) dispatch(ctx context.Context, update Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return s.handler(ctx, s.bot, update)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func decodeUpdate(r io.Reader) (Update, error) {
	var update Update
	if err := json.NewDecoder(r).Decode(&update); err != nil {
		return nil, err
	}
	if update == nil {
		return nil, fmt.Errorf("empty update")
	}
	return update, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Warningf("failed to write response: %v", err)
	}
}
