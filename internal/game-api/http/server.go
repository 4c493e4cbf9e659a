package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/game"
	"github.com/radieske/jetton-slots/internal/game-api/dto"
	"github.com/radieske/jetton-slots/internal/ledger"
	"github.com/radieske/jetton-slots/internal/ratelimit"
	"github.com/radieske/jetton-slots/internal/settlement"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/internal/withdrawal"
)

const maxBodyBytes = 1 << 20

// API expõe os endpoints do jogador e do operador.
type API struct {
	Engine  *game.Engine
	Ledger  *ledger.Ledger
	Queue   *withdrawal.Queue
	Settler *settlement.Settler // nil desliga /api/admin/settle
	Limiter *ratelimit.Limiter  // nil desliga rate limit

	AdminKey             string // vazio desliga /api/admin/*
	EstimatedProcessTime string
	Log                  *zap.Logger
}

// Router monta as rotas públicas e administrativas
func (a *API) Router() http.Handler {
	a.Log = logger.OrNop(a.Log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.recoverer)
	r.Use(withCORS)

	r.Route("/api", func(r chi.Router) {
		r.With(a.limit("spin")).Post("/spin", a.spin)
		r.With(a.limit("double-up")).Post("/double-up", a.doubleUp)
		r.With(a.limit("collect")).Post("/collect", a.collect)
		r.With(a.limit("credit")).Get("/credit", a.credit)
		r.With(a.limit("verify")).Get("/verify", a.verify)
		r.With(a.limit("withdraw")).Post("/withdraw-request", a.withdrawRequest)

		r.Route("/admin", func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Get("/pending-withdrawals", a.pendingWithdrawals)
			r.Get("/processed-withdrawals", a.processedWithdrawals)
			r.Post("/mark-processed", a.markProcessed)
			r.Post("/credit", a.adjustCredit)
			r.Post("/settle", a.settle)
			r.Get("/withdrawals/{id}", a.getWithdrawal)
			r.Get("/withdrawals/{id}/attempts", a.attempts)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (a *API) limit(endpoint string) func(http.Handler) http.Handler {
	if a.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return a.Limiter.Middleware(endpoint)
}

// requireAdmin compara X-Admin-Key em tempo constante; sem chave configurada tudo é negado
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.AdminKey == "" {
			writeError(w, http.StatusForbidden, "admin API disabled")
			return
		}
		got := r.Header.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.AdminKey)) != 1 {
			a.Log.Warn("admin request rejected", zap.String("client", ratelimit.ClientID(r)), zap.String("path", r.URL.Path))
			writeError(w, http.StatusUnauthorized, "invalid admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				a.Log.Error("panic in handler",
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID(r)),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadJSON)
		}
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.Envelope{Success: false, Error: msg})
}

func ok() dto.Envelope { return dto.Envelope{Success: true} }

func requestID(r *http.Request) string { return middleware.GetReqID(r.Context()) }
