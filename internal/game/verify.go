package game

import (
	"errors"
	"strings"
)

var ErrInvalidServerSeed = errors.New("server seed is required")

type Verification struct {
	Outcome
	HashedServerSeed string
	// nil quando nenhum hash foi informado para conferência
	HashMatches *bool
}

// Verify recalcula a rodada a partir das seeds reveladas.
func (p *Paytable) Verify(serverSeed, clientSeed string, bet float64, expectedHash string) (Verification, error) {
	serverSeed = strings.TrimSpace(serverSeed)
	clientSeed = strings.TrimSpace(clientSeed)
	if serverSeed == "" {
		return Verification{}, ErrInvalidServerSeed
	}
	if clientSeed == "" {
		return Verification{}, ErrInvalidClientSeed
	}
	if bet < 0 {
		return Verification{}, ErrInvalidBet
	}

	v := Verification{
		Outcome:          p.Evaluate(serverSeed, clientSeed, bet),
		HashedServerSeed: HashSeed(serverSeed),
	}
	if expectedHash = strings.TrimSpace(expectedHash); expectedHash != "" {
		ok := strings.EqualFold(expectedHash, v.HashedServerSeed)
		v.HashMatches = &ok
	}
	return v, nil
}
