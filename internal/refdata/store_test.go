package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `{
	"chains": [
		{"chain_id": 5, "name": "goerli", "domain_id": 1735353714, "rpc_url": "http://localhost:8545"},
		{"chain_id": 420, "name": "optimism-goerli", "domain_id": 1735356532, "rpc_url": "http://localhost:8546"}
	],
	"assets": [
		{
			"id": "TEST",
			"price_usd": 1.0,
			"deployments": [
				{
					"chain_id": 5,
					"pool_address": "0x0000000000000000000000000000000000000001",
					"lp_token": "0x0000000000000000000000000000000000000002",
					"local": {"address": "0x0000000000000000000000000000000000000003", "symbol": "nextTEST", "decimals": 18},
					"adopted": {"address": "0x0000000000000000000000000000000000000004", "symbol": "TEST", "decimals": 18}
				}
			]
		}
	]
}`

func writeDoc(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refdata.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	store, err := Load(writeDoc(t, validDoc))
	require.NoError(t, err)

	chain, err := store.GetChain(5)
	require.NoError(t, err)
	assert.Equal(t, "goerli", chain.Name)
	assert.Equal(t, uint32(1735353714), chain.DomainID)

	asset, dep, err := store.GetAsset("TEST", 5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, asset.PriceUSD)
	assert.Equal(t, "nextTEST", dep.Local.Symbol)
	assert.Equal(t, "TEST", dep.Adopted.Symbol)

	assert.Len(t, store.Chains(), 2)
	assert.Len(t, store.Assets(), 1)
}

func TestLoadUnknownLookups(t *testing.T) {
	store, err := Load(writeDoc(t, validDoc))
	require.NoError(t, err)

	_, err = store.GetChain(999)
	assert.ErrorIs(t, err, ErrChainNotFound)

	// Known asset, wrong chain.
	_, _, err = store.GetAsset("TEST", 420)
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, _, err = store.GetAsset("NOPE", 5)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestGetPool(t *testing.T) {
	store, err := Load(writeDoc(t, validDoc))
	require.NoError(t, err)

	asset, dep, err := store.GetPool(5, common.HexToAddress("0x0000000000000000000000000000000000000001"))
	require.NoError(t, err)
	assert.Equal(t, "TEST", asset.ID)
	assert.Equal(t, "nextTEST", dep.Local.Symbol)

	// Right address, wrong chain.
	_, _, err = store.GetPool(420, common.HexToAddress("0x0000000000000000000000000000000000000001"))
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestLoadRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: "{"},
		{name: "missing rpc url", doc: `{"chains":[{"chain_id":5,"name":"goerli"}]}`},
		{name: "unknown chain reference", doc: `{"chains":[],"assets":[{"id":"TEST","deployments":[{"chain_id":5,"local":{"decimals":18},"adopted":{"decimals":18}}]}]}`},
		{name: "zero decimals", doc: `{"chains":[{"chain_id":5,"name":"goerli","rpc_url":"x"}],"assets":[{"id":"TEST","deployments":[{"chain_id":5,"local":{"decimals":0},"adopted":{"decimals":18}}]}]}`},
		{name: "duplicate chain", doc: `{"chains":[{"chain_id":5,"name":"a","rpc_url":"x"},{"chain_id":5,"name":"b","rpc_url":"y"}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeDoc(t, tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
