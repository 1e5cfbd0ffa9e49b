package wallet

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/intentswap/internal/chain"
	"github.com/aman-zulfiqar/intentswap/internal/chain/chaintest"
)

const testKeyHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newTestWallet(t *testing.T, backend *chaintest.Backend) *Wallet {
	t.Helper()
	signer, err := NewLocalSignerFromHex(testKeyHex)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	w, err := NewWallet(context.Background(), WalletConfig{
		Backend:        backend,
		Signer:         signer,
		PollInterval:   time.Millisecond,
		ReceiptTimeout: 50 * time.Millisecond,
		Logger:         logger,
	})
	require.NoError(t, err)
	return w
}

func TestLocalSigner_Address(t *testing.T) {
	s, err := NewLocalSignerFromHex(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), s.Address())

	_, err = NewLocalSignerFromHex("")
	assert.Error(t, err)
	_, err = NewLocalSignerFromHex("0xnothex")
	assert.Error(t, err)
}

func TestLocalSigner_SignTypedDataRecovers(t *testing.T) {
	s, err := NewLocalSignerFromHex(testKeyHex)
	require.NoError(t, err)

	typed := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {{Name: "name", Type: "string"}, {Name: "chainId", Type: "uint256"}},
			"Ping":         {{Name: "value", Type: "uint256"}},
		},
		PrimaryType: "Ping",
		Domain:      apitypes.TypedDataDomain{Name: "test", ChainId: (*math.HexOrDecimal256)(big.NewInt(8453))},
		Message:     apitypes.TypedDataMessage{"value": "7"},
	}

	sig, err := s.SignTypedData(context.Background(), typed)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	hash, _, err := apitypes.TypedDataAndHash(typed)
	require.NoError(t, err)
	raw := append([]byte{}, sig...)
	raw[64] -= 27
	pub, err := crypto.SigToPub(hash, raw)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))
}

func TestWallet_PrepareIsStable(t *testing.T) {
	backend := chaintest.NewBackend(8453)
	w := newTestWallet(t, backend)
	target := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tx, err := w.Prepare(context.Background(), chain.TxRequest{To: target, Data: []byte{1, 2, 3}, Gas: 500_000})
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), tx.Gas(), "quote gas floor wins over smaller estimate")
	assert.Equal(t, uint64(0), tx.Nonce())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), tx)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), from)

	require.NoError(t, w.Broadcast(context.Background(), tx))
	// rebroadcasting the same signed tx is accepted
	require.NoError(t, w.Broadcast(context.Background(), tx))
	assert.Equal(t, 1, backend.SentCount())
}

func TestWallet_BroadcastError(t *testing.T) {
	backend := chaintest.NewBackend(8453)
	backend.SendErrs = []error{errors.New("insufficient funds for gas * price + value")}
	w := newTestWallet(t, backend)

	tx, err := w.Prepare(context.Background(), chain.TxRequest{To: common.HexToAddress("0x01")})
	require.NoError(t, err)
	assert.ErrorContains(t, w.Broadcast(context.Background(), tx), "insufficient funds")
}

func TestWallet_SendWaitsForReceipt(t *testing.T) {
	backend := chaintest.NewBackend(8453)
	w := newTestWallet(t, backend)
	token := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	spender := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	data, err := chain.PackApprove(spender, chain.MaxUint256)
	require.NoError(t, err)
	receipt, err := w.Send(context.Background(), chain.TxRequest{To: token, Data: data})
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, 0, backend.Allowance(token, w.Address(), spender).Cmp(chain.MaxUint256))
}

func TestWallet_WaitReceiptTimeout(t *testing.T) {
	backend := chaintest.NewBackend(8453)
	backend.WithholdReceipts = true
	w := newTestWallet(t, backend)

	_, err := w.Send(context.Background(), chain.TxRequest{To: common.HexToAddress("0x01")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	var pending *chain.UnconfirmedTxError
	require.True(t, errors.As(err, &pending))
	require.Len(t, backend.Sent, 1)
	assert.Equal(t, backend.Sent[0].Hash(), pending.Hash)
}

func TestWallet_SendOutlivesCallerCancel(t *testing.T) {
	backend := chaintest.NewBackend(8453)
	backend.SetWithholdReceipts(true)
	signer, err := NewLocalSignerFromHex(testKeyHex)
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	w, err := NewWallet(context.Background(), WalletConfig{
		Backend:        backend,
		Signer:         signer,
		PollInterval:   time.Millisecond,
		ReceiptTimeout: 2 * time.Second,
		Logger:         logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		time.Sleep(20 * time.Millisecond)
		backend.SetWithholdReceipts(false)
	}()

	receipt, err := w.Send(ctx, chain.TxRequest{To: common.HexToAddress("0x01")})
	require.NoError(t, err, "the receipt wait is detached from the caller once broadcast")
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Error(t, ctx.Err())
}

func TestWallet_EstimateFailure(t *testing.T) {
	backend := chaintest.NewBackend(8453)
	backend.EstimateErr = errors.New("execution reverted")
	w := newTestWallet(t, backend)

	_, err := w.Prepare(context.Background(), chain.TxRequest{To: common.HexToAddress("0x01")})
	assert.ErrorContains(t, err, "estimate gas")
}

func TestIsAlreadyKnown(t *testing.T) {
	assert.True(t, IsAlreadyKnown(errors.New("already known")))
	assert.True(t, IsAlreadyKnown(errors.New("Known transaction: 0xabc")))
	assert.False(t, IsAlreadyKnown(errors.New("nonce too low")))
	assert.False(t, IsAlreadyKnown(nil))
}
