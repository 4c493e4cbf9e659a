package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ctopics "github.com/radieske/jetton-slots/pkg/contracts/topics"
)

// Config centraliza variáveis de ambiente e parâmetros de execução dos serviços
// Inclui conexões, tópicos, limites do jogo e da fila de saques
type Config struct {
	Env         string // "local", "dev", "prod"
	ServiceName string // ex: "game-api", "chain-simulator", "settle"
	LogLevel    string // vazio usa o default do ambiente

	// Armazenamento chave-valor compartilhado
	KVBackend     string // "redis" | "bolt" | "memory"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BoltPath      string

	// Opcionais: vazio desliga o journal de liquidação / eventos
	PostgresDSN  string
	KafkaBrokers string // "a:9092,b:9092"

	// Tópicos
	TopicRoundResolved       string
	TopicWithdrawalRequested string
	TopicWithdrawalSettled   string
	TopicSettlementFailed    string

	// Serviço de submissão on-chain
	ChainURL       string
	JettonDecimals int32

	AdminAPIKey string

	// Janelas e retenção
	RequestMaxAge time.Duration
	NonceTTL      time.Duration
	RoundTTL      time.Duration
	DoubleUpTTL   time.Duration

	// Regras de jogo / saque
	MaxBet               float64
	MinWithdrawal        float64
	EstimatedProcessTime string
	PaytablePath         string

	// Liquidação
	SettlementDelay time.Duration
	SettlementBatch int

	// Rate limit por endpoint, formato "limite/janela" (ex.: "30/1m")
	RateLimits map[string]string

	// Simulador da chain
	SimulatorFailureRate float64

	// Portas do serviço atual
	HTTPPort    string // Porta pública (ex.: API REST)
	MetricsPort string // Porta exclusiva para /metrics e /healthz
}

// Endpoints com política de rate limit configurável
var rateLimitedEndpoints = map[string]string{
	"spin":      "30/1m",
	"double-up": "30/1m",
	"collect":   "30/1m",
	"withdraw":  "5/1m",
	"credit":    "120/1m",
	"verify":    "60/1m",
}

// Load carrega variáveis de ambiente (e um .env opcional) e define defaults
// Resolve portas conforme o SERVICE_NAME
func Load() Config {
	// .env é opcional; ausência não é erro
	_ = godotenv.Load()

	svc := getEnv("SERVICE_NAME", "")
	env := getEnv("ENV", "local")

	cfg := Config{
		Env:         env,
		ServiceName: svc,
		LogLevel:    getEnv("LOG_LEVEL", ""),

		KVBackend:     strings.ToLower(getEnv("KV_BACKEND", "redis")),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		BoltPath:      getEnv("BOLT_PATH", "data/credits.db"),

		PostgresDSN:  getEnv("POSTGRES_DSN", ""),
		KafkaBrokers: getEnv("KAFKA_BROKERS", ""),

		TopicRoundResolved:       getEnv("KAFKA_TOPIC_ROUND_RESOLVED", ctopics.RoundResolved),
		TopicWithdrawalRequested: getEnv("KAFKA_TOPIC_WITHDRAWAL_REQUESTED", ctopics.WithdrawalRequested),
		TopicWithdrawalSettled:   getEnv("KAFKA_TOPIC_WITHDRAWAL_SETTLED", ctopics.WithdrawalSettled),
		TopicSettlementFailed:    getEnv("KAFKA_TOPIC_SETTLEMENT_FAILED", ctopics.WithdrawalSettlementFailed),

		ChainURL:       getEnv("CHAIN_URL", "http://localhost:8081"),
		JettonDecimals: int32(getEnvInt("JETTON_DECIMALS", 9)),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		RequestMaxAge: getEnvDuration("REQUEST_MAX_AGE", 5*time.Minute),
		NonceTTL:      getEnvDuration("NONCE_TTL", 10*time.Minute),
		RoundTTL:      getEnvDuration("ROUND_TTL", 7*24*time.Hour),
		DoubleUpTTL:   getEnvDuration("DOUBLE_UP_TTL", 10*time.Minute),

		MaxBet:               getEnvFloat("MAX_BET", 1000),
		MinWithdrawal:        getEnvFloat("MIN_WITHDRAWAL", 1),
		EstimatedProcessTime: getEnv("ESTIMATED_PROCESS_TIME", "24 hours"),
		PaytablePath:         getEnv("PAYTABLE_PATH", ""),

		SettlementDelay: getEnvDuration("SETTLEMENT_DELAY", 2*time.Second),
		SettlementBatch: getEnvInt("SETTLEMENT_BATCH", 50),

		SimulatorFailureRate: getEnvFloat("SIMULATOR_FAILURE_RATE", 0.2),

		RateLimits: make(map[string]string, len(rateLimitedEndpoints)),
	}

	// o nonce precisa sobreviver pelo menos a janela de validade da requisição
	if cfg.NonceTTL < cfg.RequestMaxAge {
		cfg.NonceTTL = cfg.RequestMaxAge
	}

	for endpoint, def := range rateLimitedEndpoints {
		key := "RATE_LIMIT_" + strings.ToUpper(strings.ReplaceAll(endpoint, "-", "_"))
		cfg.RateLimits[endpoint] = getEnv(key, def)
	}

	// Define portas padrão para cada serviço
	switch svc {
	case "game-api":
		cfg.HTTPPort = getEnv("HTTP_PORT_GAME", "8080")
		cfg.MetricsPort = getEnv("METRICS_PORT_GAME", "9095")
	case "chain-simulator":
		cfg.HTTPPort = getEnv("HTTP_PORT_CHAIN", "8081")
		cfg.MetricsPort = getEnv("METRICS_PORT_CHAIN", "9094")
	case "settle":
		cfg.HTTPPort = "" // CLI, sem HTTP público
		cfg.MetricsPort = ""
	default:
		cfg.HTTPPort = getEnv("HTTP_PORT", "8080")
		cfg.MetricsPort = getEnv("METRICS_PORT", "9095")
	}

	return cfg
}

// Brokers devolve a lista de brokers Kafka (vazia quando desligado)
func (c Config) Brokers() []string {
	if strings.TrimSpace(c.KafkaBrokers) == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// getEnv retorna o valor da variável de ambiente ou o default
func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
