package swapengine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetrySubmit(t *testing.T) {
	tests := []struct {
		err   string
		retry bool
		kind  string
	}{
		{"execution reverted: TRANSFER_FROM_FAILED", false, errKindContract},
		{"gas required exceeds allowance (300000)", false, errKindContract},
		{"insufficient funds for gas * price + value", false, errKindFunds},
		{"nonce too low", false, errKindNonce},
		{"replacement transaction underpriced", false, errKindNonce},
		{"dial tcp 127.0.0.1:8545: connection refused", true, errKindNetwork},
		{"read: connection reset by peer", true, errKindNetwork},
		{"i/o timeout", true, errKindNetwork},
		{"429 Too Many Requests", true, errKindNetwork},
		{"unexpected EOF", true, errKindNetwork},
		{"missing trie node abc", true, errKindNodeState},
		{"something odd happened", true, errKindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			retry, kind := shouldRetrySubmit(errors.New(tt.err))
			assert.Equal(t, tt.retry, retry)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestShouldRetrySubmit_Cancelled(t *testing.T) {
	retry, _ := shouldRetrySubmit(fmt.Errorf("broadcast: %w", context.Canceled))
	assert.False(t, retry)
}

func TestMayHaveLanded(t *testing.T) {
	tests := []struct {
		err    string
		landed bool
	}{
		{"dial tcp 127.0.0.1:8545: connection refused", false},
		{"dial tcp: lookup rpc.example: no such host", false},
		{"execution reverted", false},
		{"insufficient funds for gas * price + value", false},
		{"nonce too low: next nonce 8, tx nonce 7", false},
		{"i/o timeout", true},
		{"read: connection reset by peer", true},
		{"502 Bad Gateway", true},
		{"something odd happened", true},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Equal(t, tt.landed, mayHaveLanded(errors.New(tt.err)))
		})
	}
}
