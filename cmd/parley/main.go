package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"parley/internal/auth"
	"parley/internal/config"
	"parley/internal/controller"
	"parley/internal/llm"
	"parley/internal/logger"
	"parley/internal/repo"
	"parley/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		cfg = &config.Config{}
	}
	logger.SetLevel(cfg.Log.Level)
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "parley.db"
	}

	// A store that fails to open is not fatal: the repository degrades to an
	// ephemeral in-memory chat.
	var storage repo.Storage
	if db, err := store.Open(cfg.Storage.Path); err != nil {
		logger.L.Warn("chat store unavailable; running without persistence", "error", err)
	} else {
		storage = db
	}

	sessions := repo.New(storage)
	ctrl := controller.New(sessions, llm.NewClient(cfg.LLM))
	ctrl.Startup(context.Background())

	gate := auth.NewGate()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		token, err := gate.Login(body.Email, body.Password)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			MaxAge:   int(auth.SessionTTL.Seconds()),
		})
		writeJSON(w, map[string]bool{"success": true})
	})

	mux.Handle("GET /api/chats", authorized(gate, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ctrl.Chats())
	}))

	mux.Handle("POST /api/chats", authorized(gate, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ctrl.CreateChat(r.Context()))
	}))

	mux.Handle("DELETE /api/chats/{id}", authorized(gate, func(w http.ResponseWriter, r *http.Request) {
		ctrl.DeleteChat(r.Context(), r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}))

	mux.Handle("POST /api/chats/{id}/activate", authorized(gate, func(w http.ResponseWriter, r *http.Request) {
		ctrl.SwitchActive(r.PathValue("id"))
		writeJSON(w, ctrl.Visible())
	}))

	// Send endpoint: streams the growing reply back as plain text chunks.
	mux.Handle("POST /api/chat", authorized(gate, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher, _ := w.(http.Flusher)
		written := 0
		err := ctrl.Send(r.Context(), body.Content, func(snapshot string) {
			// Snapshots are cumulative; only the delta goes on the wire.
			if len(snapshot) > written {
				fmt.Fprint(w, snapshot[written:])
				written = len(snapshot)
				if flusher != nil {
					flusher.Flush()
				}
			}
		})
		if err != nil {
			switch err {
			case controller.ErrBlankMessage, controller.ErrNoActiveChat:
				if written == 0 {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
			case controller.ErrSendInFlight:
				if written == 0 {
					http.Error(w, err.Error(), http.StatusConflict)
					return
				}
			}
			// A stream that broke mid-reply already committed the error
			// notice to the conversation; surface it on the wire too.
			fmt.Fprint(w, "\n\n"+controller.ErrorNotice)
		}
	}))

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", serverAddr)
	if err := http.ListenAndServe(serverAddr, mux); err != nil {
		logger.L.Error("failed to start server", "error", err)
	}
}

// authorized rejects requests that do not carry a live session cookie.
func authorized(gate *auth.Gate, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.CookieName)
		if err != nil || !gate.Check(cookie.Value) {
			http.Error(w, auth.ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}
		next(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Warn("encoding response failed", "error", err)
	}
}
