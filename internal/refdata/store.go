/*
Package refdata loads and serves the static reference data describing the
chains, assets and pool deployments the service may trade on. The data is a
JSON document loaded once at startup; lookups are read-only afterwards.
*/

package refdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrChainNotFound  = errors.New("chain is not in the reference data")
	ErrAssetNotFound  = errors.New("asset is not deployed on the chain")
	ErrPoolNotFound   = errors.New("pool is not in the reference data")
	ErrInvalidRefData = errors.New("reference data is invalid")
	ErrDuplicateChain = errors.New("duplicate chain in reference data")
	ErrDuplicateAsset = errors.New("duplicate asset deployment in reference data")
)

// ChainInfo describes one supported chain.
type ChainInfo struct {
	ChainID  uint64 `json:"chain_id"`
	Name     string `json:"name"`
	DomainID uint32 `json:"domain_id"`
	RPCURL   string `json:"rpc_url"`
}

// TokenInfo describes one ERC20 deployment.
type TokenInfo struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals int            `json:"decimals"`
}

// AssetDeployment describes an asset's pool on one chain. Local is the
// bridged representation minted on the chain, Adopted the canonical token the
// pool pairs it with.
type AssetDeployment struct {
	ChainID     uint64         `json:"chain_id"`
	PoolAddress common.Address `json:"pool_address"`
	LPToken     common.Address `json:"lp_token"`
	Local       TokenInfo      `json:"local"`
	Adopted     TokenInfo      `json:"adopted"`
}

// AssetInfo is one tradeable asset across all its deployments.
type AssetInfo struct {
	ID          string            `json:"id"`
	PriceUSD    float64           `json:"price_usd"`
	Deployments []AssetDeployment `json:"deployments"`
}

type document struct {
	Chains []ChainInfo `json:"chains"`
	Assets []AssetInfo `json:"assets"`
}

// Store holds the loaded reference data.
type Store struct {
	chains map[uint64]ChainInfo
	assets map[string]AssetInfo
	logger zerolog.Logger
}

// Load reads and validates the reference data document at path.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference data file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefData, err)
	}

	store, err := newStore(doc)
	if err != nil {
		return nil, err
	}

	store.logger.Info().
		Str("path", path).
		Int("chains", len(store.chains)).
		Int("assets", len(store.assets)).
		Msg("Reference data loaded")

	return store, nil
}

func newStore(doc document) (*Store, error) {
	store := &Store{
		chains: make(map[uint64]ChainInfo, len(doc.Chains)),
		assets: make(map[string]AssetInfo, len(doc.Assets)),
		logger: logger.GetForComponent("refdata"),
	}

	for _, chain := range doc.Chains {
		if chain.ChainID == 0 || chain.RPCURL == "" {
			return nil, fmt.Errorf("%w: chain %q needs a chain_id and rpc_url", ErrInvalidRefData, chain.Name)
		}
		if _, exists := store.chains[chain.ChainID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateChain, chain.ChainID)
		}
		store.chains[chain.ChainID] = chain
	}

	for _, asset := range doc.Assets {
		if asset.ID == "" {
			return nil, fmt.Errorf("%w: asset with empty id", ErrInvalidRefData)
		}
		if _, exists := store.assets[asset.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAsset, asset.ID)
		}

		seen := make(map[uint64]bool, len(asset.Deployments))
		for _, dep := range asset.Deployments {
			if _, ok := store.chains[dep.ChainID]; !ok {
				return nil, fmt.Errorf("%w: asset %s references unknown chain %d", ErrInvalidRefData, asset.ID, dep.ChainID)
			}
			if seen[dep.ChainID] {
				return nil, fmt.Errorf("%w: %s on chain %d", ErrDuplicateAsset, asset.ID, dep.ChainID)
			}
			if dep.Local.Decimals <= 0 || dep.Adopted.Decimals <= 0 {
				return nil, fmt.Errorf("%w: asset %s on chain %d has non-positive decimals", ErrInvalidRefData, asset.ID, dep.ChainID)
			}
			seen[dep.ChainID] = true
		}
		store.assets[asset.ID] = asset
	}

	return store, nil
}

// GetChain looks up a chain by ID.
func (s *Store) GetChain(chainID uint64) (ChainInfo, error) {
	chain, ok := s.chains[chainID]
	if !ok {
		return ChainInfo{}, fmt.Errorf("%w: %d", ErrChainNotFound, chainID)
	}
	return chain, nil
}

// GetAsset looks up an asset's deployment on one chain.
func (s *Store) GetAsset(assetID string, chainID uint64) (AssetInfo, AssetDeployment, error) {
	asset, ok := s.assets[assetID]
	if !ok {
		return AssetInfo{}, AssetDeployment{}, fmt.Errorf("%w: %s on chain %d", ErrAssetNotFound, assetID, chainID)
	}
	for _, dep := range asset.Deployments {
		if dep.ChainID == chainID {
			return asset, dep, nil
		}
	}
	return AssetInfo{}, AssetDeployment{}, fmt.Errorf("%w: %s on chain %d", ErrAssetNotFound, assetID, chainID)
}

// GetPool looks up the asset whose pool contract lives at the given address
// on the given chain.
func (s *Store) GetPool(chainID uint64, pool common.Address) (AssetInfo, AssetDeployment, error) {
	for _, asset := range s.assets {
		for _, dep := range asset.Deployments {
			if dep.ChainID == chainID && dep.PoolAddress == pool {
				return asset, dep, nil
			}
		}
	}
	return AssetInfo{}, AssetDeployment{}, fmt.Errorf("%w: %s on chain %d", ErrPoolNotFound, pool.Hex(), chainID)
}

// Chains returns all chains ordered by ID.
func (s *Store) Chains() []ChainInfo {
	chains := make([]ChainInfo, 0, len(s.chains))
	for _, chain := range s.chains {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].ChainID < chains[j].ChainID })
	return chains
}

// Assets returns all assets ordered by ID.
func (s *Store) Assets() []AssetInfo {
	assets := make([]AssetInfo, 0, len(s.assets))
	for _, asset := range s.assets {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets
}
