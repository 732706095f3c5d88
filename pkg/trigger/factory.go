package trigger

import (
	"fmt"

	"github.com/reelqueue/platform/pkg/common/config"
	"github.com/reelqueue/platform/pkg/common/httpclient"
	"github.com/reelqueue/platform/pkg/common/kafka"
)

// New builds the trigger selected by TRIGGER_BACKEND.
func New(cfg *config.Config) (Trigger, error) {
	switch cfg.TriggerBackend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendHTTP:
		if cfg.TriggerURL == "" {
			return nil, fmt.Errorf("TRIGGER_URL: %w", config.ErrMissing)
		}
		return NewHTTPTrigger(cfg.TriggerURL, httpclient.New("trigger", cfg.OutboundTimeout)), nil
	case BackendKafka:
		return NewKafkaTrigger(kafka.NewProducer(cfg.KafkaBrokers, cfg.TriggerTopic)), nil
	case BackendAMQP:
		return NewAMQPTrigger(cfg.AMQPURL, cfg.TriggerQueue), nil
	default:
		return nil, fmt.Errorf("unknown trigger backend %q", cfg.TriggerBackend)
	}
}
