package linear

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const viewerQuery = "{ viewer { id } }"

// ErrKeyRejected means Linear answered but did not accept the API key.
var ErrKeyRejected = errors.New("linear: api key rejected")

// ValidateAPIKey runs a read-only viewer query with the given personal API
// key and returns the viewer id. The caller bounds the call with ctx; the
// client timeout applies as an upper limit.
func (p *Provider) ValidateAPIKey(ctx context.Context, apiKey string) (string, error) {
	payload, status, err := p.client.PostJSON(ctx, p.apiURL, apiKey, map[string]string{"query": viewerQuery})
	if err != nil {
		return "", fmt.Errorf("linear viewer query: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrKeyRejected, status)
	}

	id := payload.String("data", "viewer", "id")
	if id == "" {
		return "", fmt.Errorf("%w: no viewer in response", ErrKeyRejected)
	}
	return id, nil
}
