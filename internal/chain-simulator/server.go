// Package simulator é um substituto local do serviço de submissão on-chain:
// aceita transferências Jetton, devolve hashes fictícios e falha numa taxa configurável.
package simulator

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	mrand "math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	chaindto "github.com/radieske/jetton-slots/internal/chain/dto"
	"github.com/radieske/jetton-slots/internal/shared/logger"
)

// TransferEvent é o que o feed /ws publica para cada transferência recebida.
type TransferEvent struct {
	chaindto.TransferReq
	Status string    `json:"status"`
	TxHash string    `json:"txHash,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type Server struct {
	log         *zap.Logger
	hub         *Hub
	failureRate float64
	roll        func() float64

	mu       sync.Mutex
	accepted map[string]string // withdrawalId -> txHash
	recent   []TransferEvent

	transfers *prometheus.CounterVec
}

type Option func(*Server)

// WithRoll substitui o sorteio de falha (valores em [0,1)).
func WithRoll(f func() float64) Option { return func(s *Server) { s.roll = f } }

const recentLimit = 100

func NewServer(log *zap.Logger, hub *Hub, failureRate float64, reg prometheus.Registerer, opts ...Option) *Server {
	s := &Server{
		log:         logger.OrNop(log),
		hub:         hub,
		failureRate: failureRate,
		roll:        mrand.Float64,
		accepted:    make(map[string]string),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chain_sim_transfers_total",
			Help: "Transfers received by the chain simulator, by status.",
		}, []string{"status"}),
	}
	for _, o := range opts {
		o(s)
	}
	if reg != nil {
		reg.MustRegister(s.transfers)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/transfers", s.submit)
	r.Get("/transfers", s.list)
	r.Get("/jetton-wallets/{owner}", s.jettonWallet)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
	return r
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var req chaindto.TransferReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.WithdrawalID == "" || req.Destination == "" {
		http.Error(w, "withdrawalId and destination are required", http.StatusBadRequest)
		return
	}

	resp := s.process(req)
	s.transfers.WithLabelValues(resp.Status).Inc()

	ev := TransferEvent{TransferReq: req, Status: resp.Status, TxHash: resp.TxHash, Reason: resp.Reason, At: time.Now().UTC()}
	s.remember(ev)
	if s.hub != nil {
		s.hub.Broadcast(ev)
	}

	s.log.Info("transfer processed",
		zap.String("withdrawal_id", req.WithdrawalID),
		zap.String("destination", req.Destination),
		zap.String("amount", req.Amount),
		zap.String("status", resp.Status),
		zap.String("reason", resp.Reason),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) process(req chaindto.TransferReq) chaindto.TransferResp {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
		return chaindto.TransferResp{Status: chaindto.StatusRejected, Reason: "invalid_amount"}
	}
	if req.JettonWallet != "" && req.JettonWallet != req.Destination && req.JettonWallet != deriveJettonWallet(req.Destination) {
		return chaindto.TransferResp{Status: chaindto.StatusRejected, Reason: "jetton_wallet_mismatch"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a mesma retirada enviada duas vezes indica bug na liquidação
	if prev, dup := s.accepted[req.WithdrawalID]; dup {
		s.log.Warn("duplicate transfer for withdrawal", zap.String("withdrawal_id", req.WithdrawalID), zap.String("tx_hash", prev))
		return chaindto.TransferResp{Status: chaindto.StatusRejected, Reason: "duplicate_withdrawal"}
	}
	if s.roll() < s.failureRate {
		return chaindto.TransferResp{Status: chaindto.StatusRejected, Reason: "simulated_chain_reject"}
	}

	hash := newTxHash()
	s.accepted[req.WithdrawalID] = hash
	return chaindto.TransferResp{Status: chaindto.StatusSubmitted, TxHash: hash}
}

func (s *Server) remember(ev TransferEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, ev)
	if len(s.recent) > recentLimit {
		s.recent = s.recent[len(s.recent)-recentLimit:]
	}
}

// list devolve as últimas transferências, mais recentes primeiro
func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]TransferEvent, 0, len(s.recent))
	for i := len(s.recent) - 1; i >= 0; i-- {
		out = append(out, s.recent[i])
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) jettonWallet(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(chi.URLParam(r, "owner"))
	if owner == "" {
		http.Error(w, "owner required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, chaindto.JettonWalletResp{Owner: owner, Address: deriveJettonWallet(owner)})
}

// deriveJettonWallet gera um endereço determinístico por dono, no formato user-friendly do TON
func deriveJettonWallet(owner string) string {
	a := sha256.Sum256([]byte("jetton-wallet:" + owner))
	b := sha256.Sum256(a[:])
	raw := append(a[:], b[:]...)
	return "EQ" + base64.RawURLEncoding.EncodeToString(raw)[:46]
}

func newTxHash() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
