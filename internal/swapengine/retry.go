package swapengine

import (
	"context"
	"errors"
	"strings"
)

// Error classes for submission failures.
const (
	errKindNetwork   = "network_error"
	errKindNodeState = "node_state_error"
	errKindFunds     = "insufficient_funds"
	errKindNonce     = "nonce_error"
	errKindContract  = "contract_error"
	errKindUnknown   = "unknown_error"
)

// shouldRetrySubmit classifies a build or broadcast error. The signed
// transaction has a fixed nonce, so nonce and balance errors cannot heal by
// rebroadcasting it and reverts are final.
func shouldRetrySubmit(err error) (bool, string) {
	if errors.Is(err, context.Canceled) {
		return false, errKindNetwork
	}
	errStr := strings.ToLower(err.Error())

	// Contract-related errors - permanent failures
	if strings.Contains(errStr, "execution reverted") ||
		strings.Contains(errStr, "revert") ||
		strings.Contains(errStr, "invalid opcode") ||
		strings.Contains(errStr, "out of gas") ||
		strings.Contains(errStr, "gas required exceeds allowance") {
		return false, errKindContract
	}

	// Balance-related errors - permanent failures
	if strings.Contains(errStr, "insufficient funds") ||
		strings.Contains(errStr, "insufficient balance") {
		return false, errKindFunds
	}

	// Nonce-related errors - the nonce is baked into the signed tx
	if strings.Contains(errStr, "nonce too low") ||
		strings.Contains(errStr, "nonce too high") ||
		strings.Contains(errStr, "replacement transaction underpriced") {
		return false, errKindNonce
	}

	// Network/RPC errors - retry is appropriate
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "no response") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "502") {
		return true, errKindNetwork
	}

	// RPC node state errors
	if strings.Contains(errStr, "missing trie node") ||
		strings.Contains(errStr, "header not found") ||
		strings.Contains(errStr, "block not found") {
		return true, errKindNodeState
	}

	// Unknown errors - retry with caution
	return true, errKindUnknown
}

// mayHaveLanded reports whether a failed broadcast could still have put the
// transaction in a mempool. Refused connections and node rejections could not;
// timeouts and unclassified errors could.
func mayHaveLanded(err error) bool {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return false
	}
	switch _, kind := shouldRetrySubmit(err); kind {
	case errKindContract, errKindFunds, errKindNonce:
		return false
	}
	return true
}
