// Package admin exposes a read-only operator surface over HTTP: health,
// session list, prometheus metrics, and a live websocket feed of system
// events. Message plaintext never leaves the core through this endpoint.
package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lockchat/internal/model"
	"lockchat/internal/service/server"
	"lockchat/internal/utils/log"
)

type (
	Admin struct {
		chat *server.Server
		http *http.Server
	}
)

func New(chat *server.Server) *Admin {
	return &Admin{chat: chat}
}

// Router builds the admin route table.
func (a *Admin) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", a.handleHealth()).Methods(http.MethodGet)
	r.HandleFunc("/sessions", a.handleSessions()).Methods(http.MethodGet)
	r.Handle("/metrics", a.chat.Metrics().Handler()).Methods(http.MethodGet)
	r.HandleFunc("/events", a.handleEvents()).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves the admin endpoint until Shutdown.
func (a *Admin) ListenAndServe(addr string) error {
	a.http = &http.Server{
		Addr:    addr,
		Handler: a.Router(),
	}
	log.Info("admin endpoint listening", zap.String("addr", addr))

	err := a.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the admin endpoint.
func (a *Admin) Shutdown(ctx context.Context) error {
	if a.http == nil {
		return nil
	}
	return a.http.Shutdown(ctx)
}

func (a *Admin) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (a *Admin) handleSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.chat.Sessions()); err != nil {
			log.Error("encode sessions failed", zap.Error(err))
		}
	}
}

func (a *Admin) handleEvents() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // trusted network, same as the chat itself
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "Failed to upgrade", http.StatusInternalServerError)
			return
		}
		defer conn.Close()

		events, cancel := a.chat.Subscribe()
		defer cancel()

		// reader pump: only there to notice the peer going away
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(redact(ev)); err != nil {
					log.Debug("event feed closed", zap.Error(err))
					return
				}
			case <-gone:
				return
			}
		}
	}
}

// redact strips chat plaintext from message events; the feed reports who
// spoke and when, never what was said.
func redact(ev model.Event) model.Event {
	if ev.Kind == model.KindMessage {
		ev.Text = ""
	}
	return ev
}
