package tokens

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/intentswap/internal/chain/chaintest"
	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/rpc"
)

var usdc = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")

type stubSearcher struct {
	results []SearchResult
	err     error
	calls   int
}

func (s *stubSearcher) Search(context.Context, string) ([]SearchResult, error) {
	s.calls++
	return s.results, s.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newResolver(backend *chaintest.Backend, s Searcher) *Resolver {
	return NewResolver(ResolverConfig{
		Caller:   backend,
		Searcher: s,
		ChainID:  8453,
		Logger:   quietLogger(),
	})
}

func TestResolve_RegistrySymbol(t *testing.T) {
	s := &stubSearcher{}
	r := newResolver(chaintest.NewBackend(8453), s)

	ref, err := r.Resolve(context.Background(), "usdc")
	require.NoError(t, err)
	assert.Equal(t, usdc, ref.Address)
	assert.Equal(t, uint8(6), ref.Decimals)
	assert.Equal(t, 0, s.calls, "registry hit must not search")
}

func TestResolve_NativeZeroAddress(t *testing.T) {
	r := newResolver(chaintest.NewBackend(8453), nil)

	ref, err := r.Resolve(context.Background(), "0x0000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.True(t, ref.IsNative())
	assert.Equal(t, uint8(18), ref.Decimals)
}

func TestResolve_AddressReadsChainDecimals(t *testing.T) {
	backend := chaintest.NewBackend(8453)
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	backend.SetToken(token, "FOO", 9)
	r := newResolver(backend, nil)

	ref, err := r.Resolve(context.Background(), token.Hex())
	require.NoError(t, err)
	assert.Equal(t, uint8(9), ref.Decimals)
	assert.Equal(t, "FOO", ref.Symbol)
}

func TestResolve_KnownAddressFallsBackToRegistry(t *testing.T) {
	backend := chaintest.NewBackend(8453)
	backend.FailCalls(usdc, errors.New("node unavailable"))
	r := newResolver(backend, nil)

	ref, err := r.Resolve(context.Background(), usdc.Hex())
	require.NoError(t, err)
	assert.Equal(t, uint8(6), ref.Decimals)
	assert.Equal(t, "USDC", ref.Symbol)
}

func TestResolve_UnknownAddressWithoutDecimals(t *testing.T) {
	r := newResolver(chaintest.NewBackend(8453), nil)

	_, err := r.Resolve(context.Background(), "0x2222222222222222222222222222222222222222")
	assert.True(t, errors.Is(err, swaperr.ErrTokenNotFound))
}

func TestResolve_Malformed(t *testing.T) {
	r := newResolver(chaintest.NewBackend(8453), nil)

	for _, in := range []string{"", "  ", "0x1234", "0xZZZZ"} {
		_, err := r.Resolve(context.Background(), in)
		assert.True(t, errors.Is(err, swaperr.ErrTokenNotFound), in)
	}
}

func TestResolve_SearchFirstMatch(t *testing.T) {
	s := &stubSearcher{results: []SearchResult{
		{Address: "0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed", ChainID: 8453, Decimals: 18, Symbol: "DEGEN", Name: "Degen"},
		{Address: "0x3333333333333333333333333333333333333333", ChainID: 8453, Decimals: 6, Symbol: "DEGEN2"},
	}}
	r := newResolver(chaintest.NewBackend(8453), s)

	ref, err := r.Resolve(context.Background(), "degen")
	require.NoError(t, err)
	assert.Equal(t, "DEGEN", ref.Symbol)
	assert.Equal(t, uint8(18), ref.Decimals)
}

func TestResolve_SearchFailsClosed(t *testing.T) {
	s := &stubSearcher{err: context.DeadlineExceeded}
	r := newResolver(chaintest.NewBackend(8453), s)

	_, err := r.Resolve(context.Background(), "degen")
	assert.True(t, errors.Is(err, swaperr.ErrTokenNotFound))

	s.err = nil
	_, err = r.Resolve(context.Background(), "nothing")
	assert.True(t, errors.Is(err, swaperr.ErrTokenNotFound))
}

func TestRPCSearcher_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-key", r.URL.Path)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":[{"address":"0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed","chainId":8453,"decimals":18,"name":"Degen","symbol":"DEGEN"}]}`))
	}))
	defer srv.Close()

	client := rpc.NewClient(rpc.ClientConfig{BaseURL: SearchURL(srv.URL, "test-key"), Timeout: time.Second})
	res, err := NewRPCSearcher(client).Search(context.Background(), "degen")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "DEGEN", res[0].Symbol)
}

func TestLoadRegistry_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tokens:
  - symbol: DEGEN
    name: Degen
    address: "0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed"
  - symbol: USDC
    address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
    decimals: 6
    name: Bridged override
`), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	degen, ok := reg.BySymbol("degen")
	require.True(t, ok)
	assert.Equal(t, uint8(18), degen.Decimals, "missing decimals default to 18")

	u, ok := reg.BySymbol("USDC")
	require.True(t, ok)
	assert.Equal(t, "Bridged override", u.Name)
}

func TestLoadRegistry_InvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tokens:\n  - symbol: BAD\n    address: nope\n"), 0o600))

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}
