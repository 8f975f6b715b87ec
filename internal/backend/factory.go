package backend

import (
	"fmt"
	"strings"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

// Backend variant names. The set is closed: adding a variant means adding a
// driver and a case in Open.
const (
	TypeBolt       = "bolt"
	TypeQdrant     = "qdrant"
	TypeRediSearch = "redisearch"
)

// Names returns the supported backend variant names.
func Names() []string {
	return []string{TypeBolt, TypeQdrant, TypeRediSearch}
}

// Open constructs the backend variant selected by name. Selection happens
// once at startup; everything downstream sees only the Store interface.
func Open(name string, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case TypeBolt:
		return NewBoltStore(cfg)
	case TypeQdrant:
		return NewQdrantStore(cfg)
	case TypeRediSearch, "redis":
		return NewRedisStore(cfg)
	default:
		return nil, errors.ValidationError(fmt.Sprintf(
			"unknown backend %q (supported: %s)", name, strings.Join(Names(), ", ")))
	}
}
