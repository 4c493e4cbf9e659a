package game

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed paytable.yaml
var defaultPaytable []byte

type SymbolSetting struct {
	Symbol     string  `yaml:"symbol"     json:"symbol"`
	Weight     float64 `yaml:"weight"     json:"weight"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	Jackpot    bool    `yaml:"jackpot"    json:"jackpot"`
}

// Paytable define símbolos, pesos e pagamentos. Use LoadPaytable/ParsePaytable
// para obter uma tabela validada.
type Paytable struct {
	Symbols            []SymbolSetting `yaml:"symbols"                json:"symbols"`
	ThreeOfAKindFactor float64         `yaml:"three_of_a_kind_factor" json:"threeOfAKindFactor"`
	JackpotMultiplier  float64         `yaml:"jackpot_multiplier"     json:"jackpotMultiplier"`
	cumulative         []float64
}

// DefaultPaytable devolve a tabela embutida no binário.
func DefaultPaytable() *Paytable {
	p, err := ParsePaytable(defaultPaytable)
	if err != nil {
		panic(fmt.Sprintf("embedded paytable invalid: %v", err))
	}
	return p
}

// LoadPaytable lê o YAML em path; path vazio usa a tabela embutida.
func LoadPaytable(path string) (*Paytable, error) {
	if path == "" {
		return DefaultPaytable(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read paytable: %w", err)
	}
	return ParsePaytable(b)
}

func ParsePaytable(b []byte) (*Paytable, error) {
	var p Paytable
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse paytable: %w", err)
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Paytable) init() error {
	if len(p.Symbols) == 0 {
		return errors.New("paytable: no symbols")
	}
	if p.ThreeOfAKindFactor <= 0 {
		return errors.New("paytable: three_of_a_kind_factor must be > 0")
	}

	seen := make(map[string]bool, len(p.Symbols))
	jackpots := 0
	total := 0.0
	for _, s := range p.Symbols {
		if s.Symbol == "" {
			return errors.New("paytable: empty symbol")
		}
		if seen[s.Symbol] {
			return fmt.Errorf("paytable: duplicated symbol %s", s.Symbol)
		}
		seen[s.Symbol] = true
		if s.Weight <= 0 {
			return fmt.Errorf("paytable: symbol %s weight must be > 0", s.Symbol)
		}
		if s.Multiplier < 0 {
			return fmt.Errorf("paytable: symbol %s multiplier must be >= 0", s.Symbol)
		}
		if s.Jackpot {
			jackpots++
		}
		total += s.Weight
	}
	if jackpots > 1 {
		return errors.New("paytable: at most one jackpot symbol")
	}
	if jackpots == 1 && p.JackpotMultiplier <= 0 {
		return errors.New("paytable: jackpot_multiplier must be > 0")
	}

	// pesos são normalizados pela soma; o último ponto fica fixo em 1
	p.cumulative = make([]float64, len(p.Symbols))
	acc := 0.0
	for i, s := range p.Symbols {
		acc += s.Weight / total
		p.cumulative[i] = acc
	}
	p.cumulative[len(p.cumulative)-1] = 1
	return nil
}

// symbolAt mapeia r em [0,1) para um símbolo pela tabela acumulada.
func (p *Paytable) symbolAt(r float64) SymbolSetting {
	for i, c := range p.cumulative {
		if r < c {
			return p.Symbols[i]
		}
	}
	return p.Symbols[len(p.Symbols)-1]
}

func (p *Paytable) lookup(symbol string) (SymbolSetting, bool) {
	for _, s := range p.Symbols {
		if s.Symbol == symbol {
			return s, true
		}
	}
	return SymbolSetting{}, false
}
