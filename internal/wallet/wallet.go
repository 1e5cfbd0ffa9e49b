// Package wallet builds, signs, broadcasts and tracks transactions for the
// server-held EVM account.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/chain"
	"github.com/aman-zulfiqar/intentswap/internal/config"
)

type WalletConfig struct {
	Backend chain.Backend
	Signer  Signer

	// ChainID is read from the backend when nil.
	ChainID *big.Int

	GasMultiplier float64
	// Simulate runs eth_call before estimating gas.
	Simulate     bool
	PollInterval time.Duration
	// ReceiptTimeout bounds Send; WaitReceipt uses the caller's deadline.
	ReceiptTimeout time.Duration

	Logger *logrus.Logger
}

type Wallet struct {
	cfg     WalletConfig
	backend chain.Backend
	signer  Signer
	chainID *big.Int
	logger  *logrus.Logger
}

func NewWallet(ctx context.Context, cfg WalletConfig) (*Wallet, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("wallet: Backend is required")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("wallet: Signer is required")
	}
	if cfg.GasMultiplier < 1 {
		cfg.GasMultiplier = 1.2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	chainID := cfg.ChainID
	if chainID == nil {
		id, err := cfg.Backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("wallet: fetch chain id: %w", err)
		}
		chainID = id
	}

	return &Wallet{
		cfg:     cfg,
		backend: cfg.Backend,
		signer:  cfg.Signer,
		chainID: chainID,
		logger:  cfg.Logger,
	}, nil
}

// NewWalletFromEnv dials the configured RPC and loads the key from
// WALLET_PRIVATE_KEY, or from the keystore directory (created on first use).
func NewWalletFromEnv(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Wallet, error) {
	signer, err := SignerFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("wallet: dial rpc: %w", err)
	}
	w, err := NewWallet(ctx, WalletConfig{
		Backend:        backend,
		Signer:         signer,
		ChainID:        big.NewInt(cfg.ChainID),
		GasMultiplier:  cfg.GasMultiplier,
		Simulate:       cfg.SimulateTx,
		PollInterval:   cfg.PollInterval,
		ReceiptTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}
	return w, nil
}

// SignerFromConfig picks the private key source: explicit hex key first, then keystore.
func SignerFromConfig(cfg *config.Config) (*LocalSigner, error) {
	if strings.TrimSpace(cfg.WalletPrivateKey) != "" {
		return NewLocalSignerFromHex(cfg.WalletPrivateKey)
	}
	if strings.TrimSpace(cfg.WalletKeystoreDir) != "" {
		ks, err := LoadOrCreateKeystore(cfg.WalletKeystoreDir, cfg.WalletKeystorePassword, StandardScrypt)
		if err != nil {
			return nil, err
		}
		return NewLocalSigner(ks.PrivateKey)
	}
	return nil, fmt.Errorf("wallet: set WALLET_PRIVATE_KEY or WALLET_KEYSTORE_DIR")
}

func (w *Wallet) Address() common.Address { return w.signer.Address() }
func (w *Wallet) Signer() Signer          { return w.signer }
func (w *Wallet) ChainID() *big.Int       { return new(big.Int).Set(w.chainID) }
func (w *Wallet) Backend() chain.Backend  { return w.backend }

func (w *Wallet) Close() error {
	w.backend.Close()
	return nil
}

// Prepare estimates gas and fees, fixes the nonce and signs. The returned
// transaction can be broadcast repeatedly without changing its hash.
func (w *Wallet) Prepare(ctx context.Context, req chain.TxRequest) (*types.Transaction, error) {
	from := w.Address()
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}
	to := req.To
	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: req.Data}

	if w.cfg.Simulate {
		if _, err := w.backend.CallContract(ctx, msg, nil); err != nil {
			return nil, fmt.Errorf("simulate transaction: %w", err)
		}
	}

	gasLimit, err := w.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit = uint64(float64(gasLimit) * w.cfg.GasMultiplier)
	if req.Gas > gasLimit {
		gasLimit = req.Gas
	}

	tipCap, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(1_000_000) // 0.001 gwei, Base L2 floor
	}
	header, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch latest header: %w", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := w.signer.SignTx(w.chainID, tx)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"to":    to.Hex(),
		"nonce": nonce,
		"gas":   gasLimit,
		"hash":  signed.Hash().Hex(),
	}).Debug("transaction prepared")
	return signed, nil
}

// Broadcast sends a signed transaction. A node that already holds the same
// transaction counts as success.
func (w *Wallet) Broadcast(ctx context.Context, tx *types.Transaction) error {
	err := w.backend.SendTransaction(ctx, tx)
	if err == nil || IsAlreadyKnown(err) {
		return nil
	}
	return err
}

// IsAlreadyKnown matches the txpool's duplicate-transaction rejection.
func IsAlreadyKnown(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}

// WaitReceipt polls until a receipt is available or ctx ends. Transient polling
// errors are ignored until the deadline.
func (w *Wallet) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := w.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			w.logger.WithFields(logrus.Fields{
				"hash":  hash.Hex(),
				"error": err,
			}).Debug("receipt poll failed")
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Send prepares, broadcasts and waits for one transaction. Used for approvals
// and transfers, which are not retried. Once broadcast, the wait ignores ctx
// cancellation and is bounded by ReceiptTimeout; a missing receipt is reported
// as *chain.UnconfirmedTxError carrying the hash.
func (w *Wallet) Send(ctx context.Context, req chain.TxRequest) (*types.Receipt, error) {
	tx, err := w.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := w.Broadcast(ctx, tx); err != nil {
		return nil, fmt.Errorf("broadcast transaction: %w", err)
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.ReceiptTimeout)
	defer cancel()
	receipt, err := w.WaitReceipt(waitCtx, tx.Hash())
	if err != nil {
		return nil, &chain.UnconfirmedTxError{Hash: tx.Hash(), Err: err}
	}
	return receipt, nil
}

// NativeBalance returns the wallet's ETH balance in wei.
func (w *Wallet) NativeBalance(ctx context.Context) (*big.Int, error) {
	return w.backend.BalanceAt(ctx, w.Address(), nil)
}
