// Package game resolve giros provably fair e o double-up, movimentando o
// saldo pelo ledger. O prêmio é creditado no giro; o double-up ajusta em
// +/- o mesmo valor.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/ledger"
	"github.com/radieske/jetton-slots/internal/shared/keylock"
	"github.com/radieske/jetton-slots/internal/shared/kv"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/internal/shared/metrics"
	"github.com/radieske/jetton-slots/internal/shared/money"
	"github.com/radieske/jetton-slots/pkg/contracts/events"
)

var (
	ErrInvalidWallet      = ledger.ErrInvalidWallet
	ErrInsufficientCredit = ledger.ErrInsufficientCredit

	ErrInvalidBet        = errors.New("invalid bet amount")
	ErrInvalidClientSeed = errors.New("client seed is required")
	ErrInvalidChoice     = errors.New("choice must be red or black")
	ErrInvalidWin        = errors.New("current win must be greater than zero")
	ErrDoubleUpPending   = errors.New("double-up pending: resolve or collect it first")
	ErrNoDoubleUpOffer   = errors.New("no double-up available for this round")
	ErrRoundNotFound     = errors.New("game round not found")
	ErrWalletMismatch    = errors.New("round belongs to another wallet")
	ErrWinMismatch       = errors.New("win amount does not match round")
	ErrRoundAlreadyUsed  = errors.New("double-up already used for this round")
	ErrUnavailable       = errors.New("game state unavailable")
)

const maxClientSeedLen = 256

// RoundPublisher recebe eventos de rodada; falha de publicação não desfaz a rodada.
type RoundPublisher interface {
	PublishRoundResolved(ctx context.Context, e events.RoundResolved) error
}

type Settings struct {
	MaxBet      float64
	RoundTTL    time.Duration
	DoubleUpTTL time.Duration
}

type Engine struct {
	store    kv.Store
	ledger   *ledger.Ledger
	paytable *Paytable
	settings Settings

	seeds   func() (string, error)
	coin    func() (bool, error)
	newID   func() string
	now     func() time.Time
	pub     RoundPublisher
	log     *zap.Logger
	metrics *metrics.Metrics

	locks keylock.Striped
}

type Option func(*Engine)

func WithSeedSource(f func() (string, error)) Option { return func(e *Engine) { e.seeds = f } }

// WithCoin troca a moeda do double-up; true = red.
func WithCoin(f func() (bool, error)) Option { return func(e *Engine) { e.coin = f } }

func WithIDs(f func() string) Option { return func(e *Engine) { e.newID = f } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithPublisher(p RoundPublisher) Option { return func(e *Engine) { e.pub = p } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = logger.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func NewEngine(store kv.Store, l *ledger.Ledger, p *Paytable, s Settings, opts ...Option) *Engine {
	if p == nil {
		p = DefaultPaytable()
	}
	if s.RoundTTL <= 0 {
		s.RoundTTL = 7 * 24 * time.Hour
	}
	if s.DoubleUpTTL <= 0 {
		s.DoubleUpTTL = 10 * time.Minute
	}
	e := &Engine{
		store:    store,
		ledger:   l,
		paytable: p,
		settings: s,
		seeds:    NewServerSeed,
		coin:     coinFlip,
		newID:    uuid.NewString,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Paytable() *Paytable { return e.paytable }

type SpinResult struct {
	GameID           string
	Reels            []string
	Winnings         float64
	IsJackpot        bool
	NewCredit        float64
	CanDoubleUp      bool
	PendingWinnings  float64
	HashedServerSeed string
	ServerSeed       string
}

// Spin debita a aposta, resolve os rolos e credita o prêmio numa só escrita do ledger.
func (e *Engine) Spin(ctx context.Context, wallet string, bet float64, clientSeed string) (SpinResult, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return SpinResult{}, ErrInvalidWallet
	}
	if err := money.ValidatePositive(bet, e.settings.MaxBet); err != nil {
		return SpinResult{}, fmt.Errorf("%w: %v", ErrInvalidBet, err)
	}
	bet = money.Normalize(bet)
	if bet <= 0 {
		return SpinResult{}, fmt.Errorf("%w: below minimum unit", ErrInvalidBet)
	}
	clientSeed = strings.TrimSpace(clientSeed)
	if clientSeed == "" || len(clientSeed) > maxClientSeedLen {
		return SpinResult{}, ErrInvalidClientSeed
	}

	defer e.locks.Lock(wallet)()

	state, err := e.loadState(ctx, wallet)
	if err != nil {
		return SpinResult{}, err
	}
	if state.CanDoubleUp {
		return SpinResult{}, ErrDoubleUpPending
	}

	// falha cedo antes de gastar uma seed
	credit, err := e.ledger.Get(ctx, wallet)
	if err != nil {
		return SpinResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if bet > credit {
		return SpinResult{}, ErrInsufficientCredit
	}

	serverSeed, err := e.seeds()
	if err != nil {
		return SpinResult{}, err
	}
	outcome := e.paytable.Evaluate(serverSeed, clientSeed, bet)
	now := e.now()

	round := Round{
		GameID:           e.newID(),
		WalletAddress:    wallet,
		BetAmount:        bet,
		Reels:            outcome.Reels,
		TotalWin:         outcome.Winnings,
		IsJackpot:        outcome.IsJackpot,
		ClientSeed:       clientSeed,
		ServerSeed:       serverSeed,
		HashedServerSeed: HashSeed(serverSeed),
		Timestamp:        now.UnixMilli(),
	}
	// sem registro da rodada o double-up não teria como validar o prêmio
	if err := kv.PutJSON(ctx, e.store, RoundKey(round.GameID), round, e.settings.RoundTTL); err != nil {
		return SpinResult{}, fmt.Errorf("%w: save round: %v", ErrUnavailable, err)
	}

	newCredit, err := e.ledger.Wager(ctx, wallet, bet, outcome.Winnings)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredit) {
			return SpinResult{}, err
		}
		return SpinResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	res := SpinResult{
		GameID:           round.GameID,
		Reels:            outcome.Reels,
		Winnings:         outcome.Winnings,
		IsJackpot:        outcome.IsJackpot,
		NewCredit:        newCredit,
		HashedServerSeed: round.HashedServerSeed,
		ServerSeed:       serverSeed,
	}

	if outcome.Winnings > 0 {
		next := PlayerState{CanDoubleUp: true, PendingWinnings: outcome.Winnings, GameID: round.GameID, UpdatedAt: now.UnixMilli()}
		if err := e.saveState(ctx, wallet, next); err != nil {
			// prêmio já creditado; apenas não oferece o double-up
			e.log.Error("save player state failed, double-up not offered",
				zap.String("wallet", wallet), zap.String("game_id", round.GameID), zap.Error(err))
		} else {
			res.CanDoubleUp = true
			res.PendingWinnings = outcome.Winnings
		}
	}

	result := "loss"
	switch {
	case outcome.IsJackpot:
		result = "jackpot"
	case outcome.Winnings > 0:
		result = "win"
	}
	e.metrics.Spin(result, bet, outcome.Winnings)
	e.log.Info("spin resolved",
		zap.String("wallet", wallet),
		zap.String("game_id", round.GameID),
		zap.Float64("bet", bet),
		zap.Strings("reels", outcome.Reels),
		zap.Float64("winnings", outcome.Winnings),
		zap.Float64("credit", newCredit),
	)

	e.publish(ctx, events.RoundResolved{
		GameID:        round.GameID,
		WalletAddress: wallet,
		Kind:          "spin",
		BetAmount:     bet,
		Reels:         outcome.Reels,
		Winnings:      outcome.Winnings,
		IsJackpot:     outcome.IsJackpot,
		CreditAfter:   newCredit,
		HashedSeed:    round.HashedServerSeed,
		Ts:            now,
	})
	return res, nil
}

type DoubleUpRequest struct {
	Wallet string
	// GameID e CurrentWin vazios usam a oferta pendente da carteira
	GameID     string
	Choice     string
	CurrentWin float64
}

type DoubleUpResult struct {
	GameID    string
	Won       bool
	Choice    string
	Outcome   string
	Amount    float64
	NewCredit float64
}

// DoubleUp resolve a oferta pendente: ganha +currentWin, perde -currentWin.
func (e *Engine) DoubleUp(ctx context.Context, req DoubleUpRequest) (DoubleUpResult, error) {
	wallet := strings.TrimSpace(req.Wallet)
	if wallet == "" {
		return DoubleUpResult{}, ErrInvalidWallet
	}
	choice, ok := normalizeChoice(req.Choice)
	if !ok {
		return DoubleUpResult{}, ErrInvalidChoice
	}
	if req.CurrentWin < 0 {
		return DoubleUpResult{}, ErrInvalidWin
	}

	defer e.locks.Lock(wallet)()

	state, err := e.loadState(ctx, wallet)
	if err != nil {
		return DoubleUpResult{}, err
	}
	gameID := strings.TrimSpace(req.GameID)
	if gameID == "" {
		gameID = state.GameID
	}
	if gameID == "" {
		return DoubleUpResult{}, ErrNoDoubleUpOffer
	}
	currentWin := money.Normalize(req.CurrentWin)
	if currentWin == 0 {
		currentWin = state.PendingWinnings
	}
	if currentWin <= 0 {
		return DoubleUpResult{}, ErrInvalidWin
	}

	var round Round
	found, err := kv.GetJSON(ctx, e.store, RoundKey(gameID), &round)
	if err != nil {
		return DoubleUpResult{}, fmt.Errorf("%w: load round: %v", ErrUnavailable, err)
	}
	if !found {
		return DoubleUpResult{}, ErrRoundNotFound
	}
	if round.WalletAddress != wallet {
		return DoubleUpResult{}, ErrWalletMismatch
	}
	if round.TotalWin != currentWin {
		return DoubleUpResult{}, ErrWinMismatch
	}

	if _, err := e.store.Get(ctx, DoubleUpUsedKey(gameID)); err == nil {
		return DoubleUpResult{}, ErrRoundAlreadyUsed
	} else if !errors.Is(err, kv.ErrNotFound) {
		return DoubleUpResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if !state.CanDoubleUp || state.GameID != gameID {
		return DoubleUpResult{}, ErrNoDoubleUpOffer
	}

	// consome a rodada antes de mexer no saldo; erro no store rejeita
	claimed, err := kv.Claim(ctx, e.store, DoubleUpUsedKey(gameID), []byte(wallet), e.usedTTL())
	if err != nil {
		return DoubleUpResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !claimed {
		return DoubleUpResult{}, ErrRoundAlreadyUsed
	}

	// a oferta sai do estado antes do saldo mudar; sem isso não há double-up
	now := e.now()
	if err := e.saveState(ctx, wallet, PlayerState{UpdatedAt: now.UnixMilli()}); err != nil {
		e.log.Error("clear player state failed, double-up aborted",
			zap.String("wallet", wallet), zap.String("game_id", gameID), zap.Error(err))
		return DoubleUpResult{}, err
	}

	red, err := e.coin()
	if err != nil {
		return DoubleUpResult{}, err
	}
	outcome := "black"
	if red {
		outcome = "red"
	}
	won := outcome == choice

	delta := -currentWin
	if won {
		delta = currentWin
	}
	newCredit, err := e.ledger.Add(ctx, wallet, delta)
	if err != nil {
		e.log.Error("double-up ledger update failed",
			zap.String("wallet", wallet), zap.String("game_id", gameID), zap.Float64("delta", delta), zap.Error(err))
		return DoubleUpResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	label := "loss"
	if won {
		label = "win"
	}
	e.metrics.DoubleUp(label)
	e.log.Info("double-up resolved",
		zap.String("wallet", wallet),
		zap.String("game_id", gameID),
		zap.String("choice", choice),
		zap.String("outcome", outcome),
		zap.Float64("amount", currentWin),
		zap.Float64("credit", newCredit),
	)

	e.publish(ctx, events.RoundResolved{
		GameID:        gameID,
		WalletAddress: wallet,
		Kind:          "double_up",
		BetAmount:     round.BetAmount,
		Winnings:      delta,
		DoubleUpWon:   &won,
		CreditAfter:   newCredit,
		Ts:            now,
	})

	return DoubleUpResult{
		GameID:    gameID,
		Won:       won,
		Choice:    choice,
		Outcome:   outcome,
		Amount:    currentWin,
		NewCredit: newCredit,
	}, nil
}

type CollectResult struct {
	GameID    string
	Collected float64
	Credit    float64
}

// Collect recusa a oferta pendente. O prêmio já está no saldo; só limpa o estado
// e marca a rodada como usada.
func (e *Engine) Collect(ctx context.Context, wallet string) (CollectResult, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return CollectResult{}, ErrInvalidWallet
	}

	defer e.locks.Lock(wallet)()

	// migra crédito de esquemas antigos antes de sobrescrever state:<wallet>
	credit, err := e.ledger.Get(ctx, wallet)
	if err != nil {
		return CollectResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	state, err := e.loadState(ctx, wallet)
	if err != nil {
		return CollectResult{}, err
	}
	if !state.CanDoubleUp {
		return CollectResult{}, ErrNoDoubleUpOffer
	}

	if state.GameID != "" {
		claimed, err := kv.Claim(ctx, e.store, DoubleUpUsedKey(state.GameID), []byte(wallet), e.usedTTL())
		if err != nil {
			return CollectResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if !claimed {
			// oferta órfã de um double-up que não terminou; só limpa o estado
			e.log.Warn("collecting offer of a round already resolved",
				zap.String("wallet", wallet), zap.String("game_id", state.GameID))
		}
	}

	now := e.now()
	if err := e.saveState(ctx, wallet, PlayerState{UpdatedAt: now.UnixMilli()}); err != nil {
		return CollectResult{}, err
	}

	e.metrics.DoubleUp("collected")
	e.log.Info("winnings collected",
		zap.String("wallet", wallet), zap.String("game_id", state.GameID), zap.Float64("amount", state.PendingWinnings))

	e.publish(ctx, events.RoundResolved{
		GameID:        state.GameID,
		WalletAddress: wallet,
		Kind:          "collect",
		Winnings:      state.PendingWinnings,
		CreditAfter:   credit,
		Ts:            now,
	})

	return CollectResult{GameID: state.GameID, Collected: state.PendingWinnings, Credit: credit}, nil
}

// WithoutOpenOffer roda fn sob o lock da carteira e recusa com ErrDoubleUpPending
// enquanto houver oferta de double-up em aberto.
func (e *Engine) WithoutOpenOffer(ctx context.Context, wallet string, fn func() error) error {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return ErrInvalidWallet
	}

	defer e.locks.Lock(wallet)()

	state, err := e.loadState(ctx, wallet)
	if err != nil {
		return err
	}
	if state.CanDoubleUp {
		return ErrDoubleUpPending
	}
	return fn()
}

// usedTTL mantém a marca de rodada usada pelo menos enquanto a rodada existir.
func (e *Engine) usedTTL() time.Duration {
	return max(e.settings.DoubleUpTTL, e.settings.RoundTTL)
}

// State devolve o estado de double-up da carteira (vazio quando não existe).
func (e *Engine) State(ctx context.Context, wallet string) (PlayerState, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return PlayerState{}, ErrInvalidWallet
	}
	return e.loadState(ctx, wallet)
}

// Round carrega uma rodada gravada.
func (e *Engine) Round(ctx context.Context, gameID string) (Round, error) {
	var r Round
	found, err := kv.GetJSON(ctx, e.store, RoundKey(gameID), &r)
	if err != nil {
		return Round{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !found {
		return Round{}, ErrRoundNotFound
	}
	return r, nil
}

func (e *Engine) publish(ctx context.Context, ev events.RoundResolved) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishRoundResolved(ctx, ev); err != nil {
		e.log.Warn("publish round_resolved failed", zap.String("game_id", ev.GameID), zap.Error(err))
	}
}

func normalizeChoice(c string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "red", "heads":
		return "red", true
	case "black", "tails":
		return "black", true
	}
	return "", false
}
