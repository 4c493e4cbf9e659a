package game

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/radieske/jetton-slots/internal/shared/money"
)

const reelCount = 3

// Outcome é o resultado determinístico de (serverSeed, clientSeed, aposta).
type Outcome struct {
	Reels      []string `json:"reels"`
	Winnings   float64  `json:"winnings"`
	IsJackpot  bool     `json:"isJackpot"`
	Multiplier float64  `json:"multiplier"`
}

// NewServerSeed gera 32 bytes de crypto/rand em hex.
func NewServerSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate server seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashSeed é o compromisso publicado antes da revelação.
func HashSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// Evaluate deriva os rolos de SHA-256(serverSeed ":" clientSeed): o rolo i usa
// os bytes [4i, 4i+4) como uint32 / 2^32.
func (p *Paytable) Evaluate(serverSeed, clientSeed string, bet float64) Outcome {
	combined := sha256.Sum256([]byte(serverSeed + ":" + clientSeed))

	reels := make([]SymbolSetting, reelCount)
	out := Outcome{Reels: make([]string, reelCount)}
	for i := 0; i < reelCount; i++ {
		u := binary.BigEndian.Uint32(combined[4*i : 4*i+4])
		reels[i] = p.symbolAt(float64(u) / (1 << 32))
		out.Reels[i] = reels[i].Symbol
	}

	if reels[0].Symbol != reels[1].Symbol || reels[1].Symbol != reels[2].Symbol {
		return out
	}

	bet = money.Normalize(bet)
	if reels[0].Jackpot {
		out.IsJackpot = true
		out.Multiplier = p.JackpotMultiplier
		out.Winnings = money.Normalize(bet * p.JackpotMultiplier)
		return out
	}
	out.Multiplier = reels[0].Multiplier * p.ThreeOfAKindFactor
	out.Winnings = money.Normalize(bet * out.Multiplier)
	return out
}

// coinFlip devolve um bit de crypto/rand.
func coinFlip() (bool, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return false, fmt.Errorf("coin flip: %w", err)
	}
	return b[0]&1 == 1, nil
}
