package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/rules"
)

// errUnsupportedProvider is returned by NewClassifier for unknown providers.
var errUnsupportedProvider = errors.New("unsupported classification provider")

// Classifier is a rules.Classifier with resources to release.
type Classifier interface {
	rules.Classifier
	Close() error
}

// NewClassifier creates the classification collaborator named by
// cfg.Provider. An empty provider selects http when an endpoint is
// configured and the heuristic otherwise.
func NewClassifier(cfg Config) (Classifier, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderHeuristic
		if cfg.Endpoint != "" {
			provider = ProviderHTTP
		}
	}

	switch provider {
	case ProviderHTTP:
		return NewHTTPClassifier(cfg)
	case ProviderHeuristic:
		return NewHeuristicClassifier(), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedProvider, cfg.Provider)
	}
}
