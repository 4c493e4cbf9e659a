// Package events publica eventos de domínio no Kafka. Publicação é best-effort:
// quem chama registra a falha e segue.
package events

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	sharedkafka "github.com/radieske/jetton-slots/internal/shared/kafka"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/pkg/contracts/events"
)

// Publisher cobre todos os eventos emitidos pelo jogo e pela liquidação.
type Publisher interface {
	PublishRoundResolved(ctx context.Context, e events.RoundResolved) error
	PublishWithdrawalRequested(ctx context.Context, e events.WithdrawalRequested) error
	PublishWithdrawalSettled(ctx context.Context, e events.WithdrawalSettled) error
	PublishSettlementFailed(ctx context.Context, e events.WithdrawalSettlementFailed) error
}

type Topics struct {
	RoundResolved       string
	WithdrawalRequested string
	WithdrawalSettled   string
	SettlementFailed    string
}

func (t Topics) all() []string {
	return []string{t.RoundResolved, t.WithdrawalRequested, t.WithdrawalSettled, t.SettlementFailed}
}

type KafkaPublisher struct {
	writers map[string]sharedkafka.MessageWriter
	topics  Topics
	log     *zap.Logger
	closers []func() error
}

// NewKafkaPublisher cria um writer por tópico.
func NewKafkaPublisher(brokers []string, topics Topics, log *zap.Logger) *KafkaPublisher {
	writers := make(map[string]sharedkafka.MessageWriter, 4)
	var closers []func() error
	for _, topic := range topics.all() {
		if topic == "" {
			continue
		}
		w := sharedkafka.NewWriter(brokers, topic)
		writers[topic] = w
		closers = append(closers, w.Close)
	}
	p := NewKafkaPublisherWithWriters(writers, topics, log)
	p.closers = closers
	return p
}

// NewKafkaPublisherWithWriters usa writers já construídos (indexados por tópico).
func NewKafkaPublisherWithWriters(writers map[string]sharedkafka.MessageWriter, topics Topics, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writers: writers, topics: topics, log: logger.OrNop(log)}
}

func (p *KafkaPublisher) PublishRoundResolved(ctx context.Context, e events.RoundResolved) error {
	return p.write(ctx, p.topics.RoundResolved, e.WalletAddress, e)
}

func (p *KafkaPublisher) PublishWithdrawalRequested(ctx context.Context, e events.WithdrawalRequested) error {
	return p.write(ctx, p.topics.WithdrawalRequested, e.WithdrawalID, e)
}

func (p *KafkaPublisher) PublishWithdrawalSettled(ctx context.Context, e events.WithdrawalSettled) error {
	return p.write(ctx, p.topics.WithdrawalSettled, e.WithdrawalID, e)
}

func (p *KafkaPublisher) PublishSettlementFailed(ctx context.Context, e events.WithdrawalSettlementFailed) error {
	return p.write(ctx, p.topics.SettlementFailed, e.WithdrawalID, e)
}

func (p *KafkaPublisher) write(ctx context.Context, topic, key string, payload any) error {
	w, ok := p.writers[topic]
	if !ok {
		return fmt.Errorf("no writer for topic %q", topic)
	}
	if err := sharedkafka.WriteJSON(ctx, w, key, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Debug("event published", zap.String("topic", topic), zap.String("key", key))
	return nil
}

func (p *KafkaPublisher) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop descarta eventos; usado quando KAFKA_BROKERS está vazio.
type Noop struct{}

func (Noop) PublishRoundResolved(context.Context, events.RoundResolved) error { return nil }

func (Noop) PublishWithdrawalRequested(context.Context, events.WithdrawalRequested) error { return nil }

func (Noop) PublishWithdrawalSettled(context.Context, events.WithdrawalSettled) error { return nil }

func (Noop) PublishSettlementFailed(context.Context, events.WithdrawalSettlementFailed) error { return nil }
