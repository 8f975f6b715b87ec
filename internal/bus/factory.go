package bus

import (
	"fmt"
	"strings"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

// New creates an event bus of the given type. Supported types are "memory"
// and "kafka"; brokers is only consulted for kafka.
func New(busType string, brokers string) (Bus, error) {
	switch strings.ToLower(strings.TrimSpace(busType)) {
	case "", "memory":
		return NewMemoryBus(), nil
	case "kafka":
		brokerList := splitBrokers(brokers)
		return NewKafkaBus(KafkaConfig{Brokers: brokerList})
	default:
		return nil, errors.ValidationError(fmt.Sprintf(
			"unknown bus type %q (must be memory or kafka)", busType))
	}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
