package allowance

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/intentswap/internal/chain"
	"github.com/aman-zulfiqar/intentswap/internal/chain/chaintest"
	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/wallet"
)

var (
	token   = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	spender = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
)

func setup(t *testing.T) (*chaintest.Backend, *wallet.Wallet, *Manager) {
	t.Helper()
	return setupWithReceiptTimeout(t, 50*time.Millisecond)
}

func setupWithReceiptTimeout(t *testing.T, receiptTimeout time.Duration) (*chaintest.Backend, *wallet.Wallet, *Manager) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	backend := chaintest.NewBackend(8453)
	signer, err := wallet.NewLocalSignerFromHex("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	w, err := wallet.NewWallet(context.Background(), wallet.WalletConfig{
		Backend:        backend,
		Signer:         signer,
		PollInterval:   time.Millisecond,
		ReceiptTimeout: receiptTimeout,
		Logger:         logger,
	})
	require.NoError(t, err)
	return backend, w, NewManager(backend, w, logger)
}

func TestEnsureAllowance_ApprovesOnceThenSkips(t *testing.T) {
	backend, w, m := setup(t)
	ctx := context.Background()
	required := big.NewInt(1_000_000)

	first, err := m.EnsureAllowance(ctx, w.Address(), token, spender, required)
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.NotEmpty(t, first.TxHash)
	assert.Equal(t, 1, backend.SentCount())
	assert.Equal(t, 0, backend.Allowance(token, w.Address(), spender).Cmp(chain.MaxUint256))

	second, err := m.EnsureAllowance(ctx, w.Address(), token, spender, required)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, 1, backend.SentCount(), "second call must not send another approval")
}

func TestEnsureAllowance_SufficientSkips(t *testing.T) {
	backend, w, m := setup(t)
	backend.SetAllowance(token, w.Address(), spender, big.NewInt(5))

	res, err := m.EnsureAllowance(context.Background(), w.Address(), token, spender, big.NewInt(5))
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, int64(5), res.Current.Int64())
	assert.Equal(t, 0, backend.SentCount())
}

func TestEnsureAllowance_RevertIsApprovalFailed(t *testing.T) {
	backend, w, m := setup(t)
	backend.RevertTo[token] = true

	res, err := m.EnsureAllowance(context.Background(), w.Address(), token, spender, big.NewInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, swaperr.ErrApprovalFailed))
	require.NotNil(t, res)

	e, ok := swaperr.As(err)
	require.True(t, ok)
	assert.Equal(t, res.TxHash, e.TxHash)
	assert.Equal(t, 1, backend.SentCount(), "approval is not retried")
}

func TestEnsureAllowance_SendFailure(t *testing.T) {
	backend, w, m := setup(t)
	backend.SendErrs = []error{errors.New("connection refused")}

	_, err := m.EnsureAllowance(context.Background(), w.Address(), token, spender, big.NewInt(1))
	assert.True(t, errors.Is(err, swaperr.ErrApprovalFailed))
}

func TestEnsureAllowance_ReadFailure(t *testing.T) {
	backend, w, m := setup(t)
	backend.FailCalls(token, errors.New("rpc down"))

	_, err := m.EnsureAllowance(context.Background(), w.Address(), token, spender, big.NewInt(1))
	assert.True(t, errors.Is(err, swaperr.ErrApprovalFailed))
	assert.Equal(t, 0, backend.SentCount())
}

func TestEnsureAllowance_CallerCancelWhileMining(t *testing.T) {
	backend, w, m := setupWithReceiptTimeout(t, 2*time.Second)
	backend.SetWithholdReceipts(true)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		time.Sleep(20 * time.Millisecond)
		backend.SetWithholdReceipts(false)
	}()

	res, err := m.EnsureAllowance(ctx, w.Address(), token, spender, big.NewInt(1))
	require.NoError(t, err)
	assert.NotEmpty(t, res.TxHash)
	assert.False(t, res.Pending)
	assert.Equal(t, 0, backend.Allowance(token, w.Address(), spender).Cmp(chain.MaxUint256))
}

func TestEnsureAllowance_UnconfirmedKeepsHash(t *testing.T) {
	backend, w, m := setup(t)
	backend.WithholdReceipts = true

	res, err := m.EnsureAllowance(context.Background(), w.Address(), token, spender, big.NewInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, swaperr.ErrApprovalFailed))
	require.NotNil(t, res)
	assert.True(t, res.Pending)
	require.Len(t, backend.Sent, 1)
	assert.Equal(t, backend.Sent[0].Hash().Hex(), res.TxHash)

	e, ok := swaperr.As(err)
	require.True(t, ok)
	assert.Equal(t, res.TxHash, e.TxHash)
}
