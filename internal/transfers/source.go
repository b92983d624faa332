package transfers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nexbridge/swapd/internal/types"
)

// IndexerSource fetches transfer history from the indexer's REST endpoint.
type IndexerSource struct {
	baseURL string
	client  *http.Client
}

// NewIndexerSource creates a source against the indexer at baseURL.
func NewIndexerSource(baseURL string) *IndexerSource {
	return &IndexerSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchTransfers queries the indexer for the user's transfers.
func (s *IndexerSource) FetchTransfers(ctx context.Context, user common.Address) ([]types.Transfer, error) {
	endpoint := fmt.Sprintf("%s/transfers?user=%s", s.baseURL, url.QueryEscape(user.Hex()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}

	var payload struct {
		Transfers []types.Transfer `json:"transfers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode transfer response: %w", err)
	}
	return payload.Transfers, nil
}
