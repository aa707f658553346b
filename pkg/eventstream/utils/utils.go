// Package eventstreamutils builds the reply event publisher named by
// configuration.
package eventstreamutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/eventstream"
	"github.com/papercomputeco/neolink/pkg/eventstream/kafka"
	"github.com/papercomputeco/neolink/pkg/eventstream/nop"
	"github.com/papercomputeco/neolink/pkg/logger"
)

const (
	ProviderNop   = "nop"
	ProviderKafka = "kafka"
)

type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
	Logger       *zap.Logger
}

// NewPublisher returns the publisher for opts.ProviderType. An empty
// provider is treated as nop.
func NewPublisher(opts *NewPublisherOpts) (eventstream.Publisher, error) {
	log := logger.OrNop(opts.Logger)

	switch opts.ProviderType {
	case "", ProviderNop:
		return nop.NewPublisher(), nil

	case ProviderKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: opts.Brokers,
			Topic:   opts.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		log.Info("publishing reply events to kafka",
			zap.Strings("brokers", opts.Brokers),
			zap.String("topic", opts.Topic),
		)
		return p, nil

	default:
		return nil, fmt.Errorf("unsupported events provider: %q", opts.ProviderType)
	}
}
