package settlement

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/gemfall/arcade/internal/services/arcade/app"
	"github.com/gemfall/arcade/internal/services/arcade/storage"
)

// erc20TransferABI is the minimal fragment needed to pack transfer calls.
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// weiPerGem converts one gem into the token's smallest unit (18 decimals).
var weiPerGem = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// TransferConfig carries the chain-side settings for reward transfers.
type TransferConfig struct {
	RPCURL       string
	PrivateKey   string
	TokenAddress string
	ChainID      int64
}

// ERC20Transferrer sends reward tokens from a treasury wallet and waits for
// the transaction to mine before returning a receipt.
type ERC20Transferrer struct {
	rpcURL  string
	key     *ecdsa.PrivateKey
	from    common.Address
	token   common.Address
	chainID *big.Int
	abi     abi.ABI
}

// NewERC20Transferrer validates the configuration and derives the treasury
// address from the signing key.
func NewERC20Transferrer(cfg TransferConfig) (*ERC20Transferrer, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("token address %q is not a hex address", cfg.TokenAddress)
	}
	if cfg.ChainID < 1 {
		return nil, fmt.Errorf("chain id %d is not positive", cfg.ChainID)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse treasury key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("parse transfer abi: %w", err)
	}
	return &ERC20Transferrer{
		rpcURL:  cfg.RPCURL,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		token:   common.HexToAddress(cfg.TokenAddress),
		chainID: big.NewInt(cfg.ChainID),
		abi:     parsed,
	}, nil
}

// Transfer sends gems worth of tokens to destination and blocks until the
// transaction mines. The returned receipt carries the on-chain hash.
func (t *ERC20Transferrer) Transfer(ctx context.Context, destination string, gems int) (storage.TransferReceipt, error) {
	if !common.IsHexAddress(destination) {
		return storage.TransferReceipt{}, fmt.Errorf("destination %q is not a hex address", destination)
	}
	if gems < 1 {
		return storage.TransferReceipt{}, fmt.Errorf("transfer amount must be positive")
	}

	client, err := ethclient.DialContext(ctx, t.rpcURL)
	if err != nil {
		return storage.TransferReceipt{}, fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	to := common.HexToAddress(destination)
	data, err := t.abi.Pack("transfer", to, GemsToWei(gems))
	if err != nil {
		return storage.TransferReceipt{}, fmt.Errorf("pack transfer call: %w", err)
	}

	nonce, err := client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return storage.TransferReceipt{}, fmt.Errorf("read nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return storage.TransferReceipt{}, fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{From: t.from, To: &t.token, Data: data})
	if err != nil {
		return storage.TransferReceipt{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, t.token, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), t.key)
	if err != nil {
		return storage.TransferReceipt{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return storage.TransferReceipt{}, fmt.Errorf("send transaction: %w", err)
	}

	// The transaction is broadcast. Failing to observe it mine does not mean
	// it will not: confirmation errors from here are indeterminate.
	receipt, err := bind.WaitMined(ctx, client, signed)
	if err != nil {
		return storage.TransferReceipt{}, fmt.Errorf("wait for transaction %s: %w: %w", signed.Hash().Hex(), app.ErrTransferIndeterminate, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return storage.TransferReceipt{}, fmt.Errorf("transaction %s reverted", signed.Hash().Hex())
	}

	return storage.TransferReceipt{
		Hash:        signed.Hash().Hex(),
		Destination: to.Hex(),
		Amount:      int64(gems),
	}, nil
}

// GemsToWei converts a gem count to the token's 18-decimal base unit.
func GemsToWei(gems int) *big.Int {
	return new(big.Int).Mul(big.NewInt(int64(gems)), weiPerGem)
}
