package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
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
)

// fallbackGas is used for a settlement step whose estimate fails, typically
// because the server does not yet hold the tokens the step would move.
const fallbackGas = 100_000

var ErrTxFailed = errors.New("transaction reverted")

// Client talks to one EVM chain on behalf of the server's settlement account
// and is bound to a single payment token contract.
type Client struct {
	eth     *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	token   common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
}

// Dial connects to the RPC endpoint at rpcURL.
func Dial(ctx context.Context, rpcURL, privateKeyHex, tokenAddress string) (*Client, error) {
	if !ValidAddress(tokenAddress) {
		return nil, fmt.Errorf("invalid token address %q", tokenAddress)
	}

	key, err := parseKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ethclient.Dial: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("eth.ChainID: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("abi.JSON: %w", err)
	}

	token := common.HexToAddress(tokenAddress)

	return &Client{
		eth:     eth,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		token:   token,
		abi:     parsed,
		bound:   bind.NewBoundContract(token, parsed, eth, eth, eth),
	}, nil
}

// Address is the server's settlement account.
func (c *Client) Address() string {
	return c.address.Hex()
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	return c.callUint(ctx, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
}

func (c *Client) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	return c.callUint(ctx, "balanceOf", common.HexToAddress(owner))
}

// NativeBalance returns the native currency balance of address.
func (c *Client) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("eth.BalanceAt: %w", err)
	}
	return bal, nil
}

// FeeData returns current fee market parameters: the suggested tip, and a
// max fee of twice the latest base fee plus the tip.
func (c *Client) FeeData(ctx context.Context) (Fees, error) {
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return Fees{}, fmt.Errorf("eth.SuggestGasTipCap: %w", err)
	}

	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return Fees{}, fmt.Errorf("eth.HeaderByNumber: %w", err)
	}

	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	return Fees{GasTipCap: tip, GasFeeCap: feeCap}, nil
}

// TransferFrom pulls amount of the token from from to to and waits for the
// transaction to be mined.
func (c *Client) TransferFrom(ctx context.Context, from, to string, amount *big.Int, fees Fees) (string, error) {
	return c.transact(ctx, fees, "transferFrom", common.HexToAddress(from), common.HexToAddress(to), amount)
}

// Withdraw unwraps amount of a wrapped native token held by the server.
func (c *Client) Withdraw(ctx context.Context, amount *big.Int, fees Fees) (string, error) {
	return c.transact(ctx, fees, "withdraw", amount)
}

// SendNative transfers amount of the native currency to to.
func (c *Client) SendNative(ctx context.Context, to string, amount *big.Int, fees Fees) (string, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return "", fmt.Errorf("eth.PendingNonceAt: %w", err)
	}

	toAddr := common.HexToAddress(to)
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: c.address, To: &toAddr, Value: amount})
	if err != nil {
		return "", fmt.Errorf("eth.EstimateGas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: fees.GasTipCap,
		GasFeeCap: fees.GasFeeCap,
		Gas:       gas,
		To:        &toAddr,
		Value:     amount,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("types.SignTx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("eth.SendTransaction: %w", err)
	}

	return c.wait(ctx, signed)
}

// EstimateSettlementGas sums the gas of every transaction a settlement may
// send: pull, unwrap, forward to fundAddress, and the re-wrap plus refund
// needed to return funds to user.
func (c *Client) EstimateSettlementGas(ctx context.Context, user string, amount *big.Int, fundAddress string) (uint64, error) {
	userAddr := common.HexToAddress(user)
	fundAddr := common.HexToAddress(fundAddress)

	steps := []struct {
		name  string
		to    common.Address
		value *big.Int
		data  func() ([]byte, error)
	}{
		{"transferFrom", c.token, nil, func() ([]byte, error) { return c.abi.Pack("transferFrom", userAddr, c.address, amount) }},
		{"withdraw", c.token, nil, func() ([]byte, error) { return c.abi.Pack("withdraw", amount) }},
		{"send", fundAddr, amount, func() ([]byte, error) { return nil, nil }},
		{"deposit", c.token, amount, func() ([]byte, error) { return c.abi.Pack("deposit") }},
		{"transfer", c.token, nil, func() ([]byte, error) { return c.abi.Pack("transfer", userAddr, amount) }},
	}

	var total uint64
	for _, step := range steps {
		data, err := step.data()
		if err != nil {
			return 0, fmt.Errorf("abi.Pack %s: %w", step.name, err)
		}

		to := step.to
		gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
			From:  c.address,
			To:    &to,
			Value: step.value,
			Data:  data,
		})
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			gas = fallbackGas
		}
		total += gas
	}

	return total, nil
}

func (c *Client) callUint(ctx context.Context, method string, params ...any) (*big.Int, error) {
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("call %s: unexpected result count %d", method, len(out))
	}

	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("call %s: unexpected result type %T", method, out[0])
	}
	return v, nil
}

func (c *Client) transact(ctx context.Context, fees Fees, method string, params ...any) (string, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("bind.NewKeyedTransactor: %w", err)
	}
	opts.Context = ctx
	opts.GasTipCap = fees.GasTipCap
	opts.GasFeeCap = fees.GasFeeCap

	tx, err := c.bound.Transact(opts, method, params...)
	if err != nil {
		return "", fmt.Errorf("transact %s: %w", method, err)
	}

	return c.wait(ctx, tx)
}

func (c *Client) wait(ctx context.Context, tx *types.Transaction) (string, error) {
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return tx.Hash().Hex(), fmt.Errorf("bind.WaitMined: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash().Hex(), fmt.Errorf("%s: %w", tx.Hash().Hex(), ErrTxFailed)
	}
	return tx.Hash().Hex(), nil
}
