// Package permit signs 0x permit2 payloads and appends the signature to the
// settlement calldata.
package permit

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/zeroex"
)

// TypedDataSigner signs EIP-712 payloads. A returned error is treated as a refusal.
type TypedDataSigner interface {
	SignTypedData(ctx context.Context, typed apitypes.TypedData) ([]byte, error)
}

type Signer struct {
	signer TypedDataSigner
}

func NewSigner(signer TypedDataSigner) *Signer {
	return &Signer{signer: signer}
}

// SignAndSplice returns the calldata to submit for quote. Without a permit2
// payload that is transaction.data unchanged. The quote is never mutated.
func (s *Signer) SignAndSplice(ctx context.Context, quote *zeroex.QuoteResponse) ([]byte, error) {
	data, err := quote.TxData()
	if err != nil {
		return nil, swaperr.Wrap(swaperr.CodeQuoteUnavailable, "quote calldata", err)
	}
	if !quote.HasPermit() {
		return data, nil
	}

	var typed apitypes.TypedData
	if err := json.Unmarshal(quote.Permit2.EIP712, &typed); err != nil {
		return nil, swaperr.Wrap(swaperr.CodeSignatureDeclined, "malformed permit2 payload", err)
	}
	sig, err := s.signer.SignTypedData(ctx, typed)
	if err != nil {
		return nil, swaperr.Wrap(swaperr.CodeSignatureDeclined, "permit2 signature declined", err)
	}
	if len(sig) == 0 {
		return nil, swaperr.New(swaperr.CodeSignatureDeclined, "empty permit2 signature")
	}
	return Splice(data, sig), nil
}

// Splice returns data ‖ uint256(len(sig)) ‖ sig in a new slice.
func Splice(data, sig []byte) []byte {
	out := make([]byte, 0, len(data)+32+len(sig))
	out = append(out, data...)
	out = append(out, math.U256Bytes(big.NewInt(int64(len(sig))))...)
	out = append(out, sig...)
	return out
}

// Unsplice splits spliced calldata back into the original data and signature.
func Unsplice(spliced []byte, sigLen int) (data, sig []byte, err error) {
	if sigLen <= 0 {
		return nil, nil, fmt.Errorf("signature length must be positive")
	}
	if len(spliced) < 32+sigLen {
		return nil, nil, fmt.Errorf("spliced calldata too short: %d bytes", len(spliced))
	}
	cut := len(spliced) - sigLen - 32
	word := new(big.Int).SetBytes(spliced[cut : cut+32])
	if !word.IsInt64() || word.Int64() != int64(sigLen) {
		return nil, nil, fmt.Errorf("length word %s does not match signature length %d", word, sigLen)
	}
	data = append([]byte{}, spliced[:cut]...)
	sig = append([]byte{}, spliced[cut+32:]...)
	return data, sig, nil
}
