package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"counterbridge/internal/contracts"
)

// Backend is the JSON-RPC surface EthClient uses. *ethclient.Client satisfies it,
// as does the client of go-ethereum's simulated backend.
type Backend interface {
	bind.ContractBackend
	ethereum.ChainIDReader
	ethereum.BlockNumberReader
	ethereum.TransactionReader
}

// EthClient talks to the Counter contract over JSON-RPC.
type EthClient struct {
	client    Backend
	closeFn   func()
	contract  *bind.BoundContract
	abi       abi.ABI
	address   common.Address
	chainID   *big.Int
	signer    types.Signer
	transacts *bind.TransactOpts

	// seq serializes submissions from the signing account and owns its nonce.
	seq struct {
		sync.Mutex
		nonce  uint64
		synced bool
	}
}

type EthClientConfig struct {
	RPCURL          string
	PrivateKeyHex   string
	ContractAddress string
	// ABI defaults to the embedded Counter ABI when empty.
	ABI abi.ABI
}

func NewEthClient(ctx context.Context, cfg EthClientConfig) (*EthClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	parsedABI, pk, err := checkConfig(cfg)
	if err != nil {
		return nil, err
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	c, err := newEthClient(ctx, cli, cfg.ContractAddress, parsedABI, pk)
	if err != nil {
		cli.Close()
		return nil, err
	}
	c.closeFn = cli.Close
	return c, nil
}

// NewEthClientWithBackend binds to an already connected backend. cfg.RPCURL is
// ignored and Close leaves the backend open.
func NewEthClientWithBackend(ctx context.Context, backend Backend, cfg EthClientConfig) (*EthClient, error) {
	parsedABI, pk, err := checkConfig(cfg)
	if err != nil {
		return nil, err
	}
	return newEthClient(ctx, backend, cfg.ContractAddress, parsedABI, pk)
}

func checkConfig(cfg EthClientConfig) (abi.ABI, *ecdsa.PrivateKey, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return abi.ABI{}, nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	parsedABI := cfg.ABI
	if len(parsedABI.Methods) == 0 {
		var err error
		if parsedABI, err = contracts.LoadABI(""); err != nil {
			return abi.ABI{}, nil, err
		}
	}

	// Without a key the client is read-only and Submit fails with ErrReadOnly.
	var pk *ecdsa.PrivateKey
	if cfg.PrivateKeyHex != "" {
		var err error
		if pk, err = parsePrivateKey(cfg.PrivateKeyHex); err != nil {
			return abi.ABI{}, nil, err
		}
	}
	return parsedABI, pk, nil
}

func newEthClient(ctx context.Context, backend Backend, contract string, parsedABI abi.ABI, pk *ecdsa.PrivateKey) (*EthClient, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	var txOpts *bind.TransactOpts
	if pk != nil {
		txOpts, err = bind.NewKeyedTransactorWithChainID(pk, chainID)
		if err != nil {
			return nil, fmt.Errorf("transactor: %w", err)
		}
	}

	address := common.HexToAddress(contract)
	return &EthClient{
		client:    backend,
		contract:  bind.NewBoundContract(address, parsedABI, backend, backend, backend),
		abi:       parsedABI,
		address:   address,
		chainID:   chainID,
		signer:    types.LatestSignerForChainID(chainID),
		transacts: txOpts,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// ChainID is the id reported by the RPC endpoint at dial time.
func (c *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Account is the address transactions are signed with; zero for a read-only client.
func (c *EthClient) Account() common.Address {
	if c.transacts == nil {
		return common.Address{}
	}
	return c.transacts.From
}

func (c *EthClient) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

func (c *EthClient) ReadCounter(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, contracts.MethodValue); err != nil {
		return nil, readErr(err)
	}
	if len(out) != 1 {
		return nil, readErr(fmt.Errorf("unexpected %d return values from %s()", len(out), contracts.MethodValue))
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, readErr(fmt.Errorf("unexpected return type %T", out[0]))
	}
	return value, nil
}

func (c *EthClient) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, readErr(err)
	}
	return n, nil
}

func (c *EthClient) Ping(ctx context.Context) error {
	_, err := c.client.BlockNumber(ctx)
	return err
}

// Submit simulates the call, then signs and broadcasts it under the account sequencer.
func (c *EthClient) Submit(ctx context.Context, intent Intent) (common.Hash, error) {
	if c.transacts == nil {
		return common.Hash{}, writeErr(intent.Op, ErrReadOnly)
	}
	input, err := c.abi.Pack(string(intent.Op), intent.args()...)
	if err != nil {
		return common.Hash{}, writeErr(intent.Op, fmt.Errorf("pack: %w", err))
	}

	// Pre-flight: contract rejections surface here with their revert data intact.
	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.transacts.From,
		To:   &c.address,
		Data: input,
	})
	if err != nil {
		return common.Hash{}, writeErr(intent.Op, fmt.Errorf("simulate: %w", err))
	}

	c.seq.Lock()
	defer c.seq.Unlock()

	nonce, err := c.nextNonce(ctx)
	if err != nil {
		return common.Hash{}, writeErr(intent.Op, err)
	}

	opts := *c.transacts
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.GasLimit = gas

	tx, err := c.contract.RawTransact(&opts, input)
	if err != nil {
		c.seq.synced = false
		return common.Hash{}, writeErr(intent.Op, fmt.Errorf("broadcast: %w", err))
	}
	c.seq.nonce++

	log.Debug("Submitted counter transaction", "op", intent.Op, "hash", tx.Hash(), "nonce", nonce, "gas", gas)
	return tx.Hash(), nil
}

func (c *EthClient) nextNonce(ctx context.Context) (uint64, error) {
	if c.seq.synced {
		return c.seq.nonce, nil
	}
	nonce, err := c.client.PendingNonceAt(ctx, c.transacts.From)
	if err != nil {
		return 0, fmt.Errorf("fetch nonce: %w", err)
	}
	c.seq.nonce = nonce
	c.seq.synced = true
	return nonce, nil
}

func (c *EthClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.client.TransactionReceipt(ctx, hash)
}

// ReplayFailure re-runs a failed transaction against the state preceding its block.
// Earlier transactions in the same block are not replayed, so the result is best effort.
func (c *EthClient) ReplayFailure(ctx context.Context, hash common.Hash, block *big.Int) error {
	tx, _, err := c.client.TransactionByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("fetch transaction: %w", err)
	}
	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return fmt.Errorf("recover sender: %w", err)
	}

	var at *big.Int
	if block != nil && block.Sign() > 0 {
		at = new(big.Int).Sub(block, common.Big1)
	}
	_, err = c.client.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, at)
	return err
}

// EventTotals sums Increment and Decrement amounts emitted since fromBlock.
func (c *EthClient) EventTotals(ctx context.Context, fromBlock uint64) (EventTotals, error) {
	totals := EventTotals{Increments: new(big.Int), Decrements: new(big.Int)}
	for name, sum := range map[string]*big.Int{
		contracts.EventIncrement: totals.Increments,
		contracts.EventDecrement: totals.Decrements,
	} {
		logs, err := c.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			Addresses: []common.Address{c.address},
			Topics:    [][]common.Hash{{c.abi.Events[name].ID}},
		})
		if err != nil {
			return EventTotals{}, readErr(fmt.Errorf("filter %s logs: %w", name, err))
		}
		for _, entry := range logs {
			var ev struct{ By *big.Int }
			if err := c.contract.UnpackLog(&ev, name, entry); err != nil {
				return EventTotals{}, readErr(fmt.Errorf("unpack %s log: %w", name, err))
			}
			sum.Add(sum, ev.By)
			totals.Count++
		}
	}
	return totals, nil
}
