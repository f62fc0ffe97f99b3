// Package settlement holds the external collaborators for reward payout: the
// address resolver that maps a player identity to a payable wallet, and the
// token transferrer that moves the reward on chain.
package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/gemfall/arcade/internal/errors"
)

// HTTPResolver looks up a player's verified wallet addresses through a
// Farcaster profile API and settles on the first one.
type HTTPResolver struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPResolver builds a resolver against the given API base URL.
func NewHTTPResolver(baseURL, apiKey string) (*HTTPResolver, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("resolver base url is required")
	}
	return &HTTPResolver{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type bulkUsersResponse struct {
	Users []struct {
		VerifiedAddresses struct {
			EthAddresses []string `json:"eth_addresses"`
		} `json:"verified_addresses"`
	} `json:"users"`
}

// ResolveAddress returns the player's first verified address. A player with
// no verified address fails with CodeNoDestination; upstream failures return
// plain errors for the caller to classify.
func (r *HTTPResolver) ResolveAddress(ctx context.Context, playerID string) (string, error) {
	endpoint := fmt.Sprintf("%s/v2/farcaster/user/bulk?fids=%s", r.baseURL, url.QueryEscape(playerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build resolver request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("x-api-key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call resolver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", apperrors.New(apperrors.CodeNoDestination, "player has no resolvable profile")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolver returned status %d", resp.StatusCode)
	}

	var body bulkUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode resolver response: %w", err)
	}
	if len(body.Users) == 0 || len(body.Users[0].VerifiedAddresses.EthAddresses) == 0 {
		return "", apperrors.New(apperrors.CodeNoDestination, "player has no verified address")
	}
	return body.Users[0].VerifiedAddresses.EthAddresses[0], nil
}
