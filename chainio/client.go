// Package chainio is the JSON-RPC collaborator the observer loop drives: it
// wraps go-ethereum's ethclient behind a narrow interface (BlockNumber,
// BlockByNumber, FilterLogs) so the rest of the core never imports
// ethclient directly, and exposes Block/Log/Tx view types shaped for the
// loop and the decoders.
package chainio

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Tx is one full transaction as observed in a block fetched with
// transactions-full.
type Tx struct {
	Hash             common.Hash
	From             common.Address
	To               *common.Address
	Input            []byte
	TransactionIndex uint
	Value            *big.Int
}

// Block is the subset of eth_getBlockByNumber this repo consumes.
type Block struct {
	Number       uint64
	TimestampS   int64
	Transactions []Tx
}

// Log is one decoded-address, raw-topics/data chain log.
type Log struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	TxHash      common.Hash
	TxIndex     uint
}

// RPCClient is the narrow JSON-RPC surface the observer loop and the
// bootstrap boundary finder need. Satisfied by *EthClient in production and
// by a fake in tests.
type RPCClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64, fullTransactions bool) (*Block, error)
	FilterLogs(ctx context.Context, addresses []common.Address, fromBlock, toBlock uint64) ([]Log, error)
}

// EthClient implements RPCClient against a real Ethereum-compatible JSON-RPC
// endpoint via go-ethereum's ethclient.
type EthClient struct {
	raw     *ethclient.Client
	chainID *big.Int
}

// Dial connects to an HTTP(S) JSON-RPC endpoint. The returned client cannot
// recover transaction senders until SetChainID is called: ChainID must be
// resolved first (bootstrap's chain-id validation) and threaded back in.
func Dial(endpoint string) (*EthClient, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chainio: rpc endpoint required")
	}
	c, err := ethclient.Dial(trimmed)
	if err != nil {
		return nil, fmt.Errorf("chainio: dial %s: %w", trimmed, err)
	}
	return &EthClient{raw: c}, nil
}

// ChainID returns the remote endpoint's eth_chainId, used at bootstrap to
// resolve the network name and enforce it's one of the four supported
// chains.
func (c *EthClient) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.raw.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("chainio: chain id: %w", err)
	}
	return id.Uint64(), nil
}

// SetChainID pins the chain id used to build the EIP-155 signer that
// recovers each transaction's sender in BlockByNumber. Must be called with
// the value ChainID resolved before the first full-transactions fetch.
func (c *EthClient) SetChainID(chainID uint64) {
	c.chainID = new(big.Int).SetUint64(chainID)
}

// BlockNumber returns the latest block number the endpoint has observed.
func (c *EthClient) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.raw.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chainio: block number: %w", err)
	}
	return n, nil
}

// BlockByNumber fetches one block, optionally with full transaction bodies.
func (c *EthClient) BlockByNumber(ctx context.Context, number uint64, fullTransactions bool) (*Block, error) {
	b, err := c.raw.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("chainio: block %d: %w", number, err)
	}

	out := &Block{Number: b.NumberU64(), TimestampS: int64(b.Time())}
	if !fullTransactions {
		return out, nil
	}

	if c.chainID == nil {
		return nil, fmt.Errorf("chainio: chain id not set, call SetChainID before fetching full transactions")
	}
	signer := gethtypes.LatestSignerForChainID(c.chainID)
	for i, tx := range b.Transactions() {
		from, err := gethtypes.Sender(signer, tx)
		if err != nil {
			// unrecoverable sender (e.g. pre-EIP-155 exotic signatures) is
			// not a fatal condition for an observer: skip the transaction.
			continue
		}
		out.Transactions = append(out.Transactions, Tx{
			Hash:             tx.Hash(),
			From:             from,
			To:               tx.To(),
			Input:            tx.Data(),
			TransactionIndex: uint(i),
			Value:            tx.Value(),
		})
	}
	return out, nil
}

// FilterLogs fetches every log emitted by any of addresses in
// [fromBlock, toBlock].
func (c *EthClient) FilterLogs(ctx context.Context, addresses []common.Address, fromBlock, toBlock uint64) ([]Log, error) {
	logs, err := c.raw.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	})
	if err != nil {
		return nil, fmt.Errorf("chainio: filter logs [%d,%d]: %w", fromBlock, toBlock, err)
	}

	out := make([]Log, len(logs))
	for i, l := range logs {
		out[i] = Log{
			Address:     l.Address,
			Topics:      l.Topics,
			Data:        l.Data,
			BlockNumber: l.BlockNumber,
			TxHash:      l.TxHash,
			TxIndex:     l.TxIndex,
		}
	}
	return out, nil
}
