/*
Package wallet signs and submits EVM transactions. The Signer interface is the
seam the trade orchestrator and faucet depend on; EthSigner is the live
implementation backed by a JSON-RPC client and a local private key.
*/

package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/nexbridge/swapd/internal/logger"
)

const receiptPollInterval = 2 * time.Second

// TxRequest describes a transaction to be signed and submitted. GasLimit of
// zero means estimate before sending.
type TxRequest struct {
	ChainID  uint64
	To       *common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

// Receipt is the subset of the on-chain receipt callers act on.
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// Signer submits transactions on behalf of the configured account.
type Signer interface {
	// Address returns the account transactions are sent from.
	Address() common.Address
	// EstimateGas returns the node's gas estimate for the request.
	EstimateGas(ctx context.Context, req TxRequest) (uint64, error)
	// SendTransaction signs and broadcasts the request, returning its hash.
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	// WaitForTransaction blocks until the transaction is mined or ctx ends.
	WaitForTransaction(ctx context.Context, chainID uint64, txHash common.Hash) (Receipt, error)
}

// EthSigner implements Signer over one ethclient per chain.
type EthSigner struct {
	clients    map[uint64]*ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     zerolog.Logger
}

// NewEthSigner derives the signing account from privateKeyHex and binds it to
// the provided per-chain clients.
func NewEthSigner(clients map[uint64]*ethclient.Client, privateKeyHex string) (*EthSigner, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signer private key: %w", err)
	}

	return &EthSigner{
		clients:    clients,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		logger:     logger.GetForComponent("wallet"),
	}, nil
}

func (s *EthSigner) Address() common.Address {
	return s.address
}

func (s *EthSigner) client(chainID uint64) (*ethclient.Client, error) {
	client, ok := s.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("no RPC client configured for chain %d", chainID)
	}
	return client, nil
}

func (s *EthSigner) EstimateGas(ctx context.Context, req TxRequest) (uint64, error) {
	client, err := s.client(req.ChainID)
	if err != nil {
		return 0, err
	}

	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    req.To,
		Value: req.Value,
		Data:  req.Data,
	})
	if err != nil {
		return 0, ParseProviderError(err)
	}
	return gas, nil
}

func (s *EthSigner) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	client, err := s.client(req.ChainID)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch pending nonce: %w", err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit, err = s.EstimateGas(ctx, req)
		if err != nil {
			return common.Hash{}, err
		}
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       req.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(new(big.Int).SetUint64(req.ChainID)), s.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, ParseProviderError(err)
	}

	s.logger.Debug().
		Uint64("chain_id", req.ChainID).
		Str("tx_hash", signedTx.Hash().Hex()).
		Uint64("gas_limit", gasLimit).
		Msg("Transaction broadcast")

	return signedTx.Hash(), nil
}

func (s *EthSigner) WaitForTransaction(ctx context.Context, chainID uint64, txHash common.Hash) (Receipt, error) {
	client, err := s.client(chainID)
	if err != nil {
		return Receipt{}, err
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return Receipt{
				TxHash:      txHash,
				Status:      receipt.Status,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
			}, nil
		}
		if err != ethereum.NotFound {
			return Receipt{}, fmt.Errorf("failed to fetch receipt for %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return Receipt{}, fmt.Errorf("%w: %s", ErrReceiptTimeout, txHash.Hex())
		case <-ticker.C:
		}
	}
}
