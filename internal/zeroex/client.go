// Package zeroex is a client for the 0x Swap API v2 permit2 endpoints.
package zeroex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/intentswap/internal/constants"
	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
)

type Client struct {
	BaseURL string
	APIKey  string
	ChainID int64
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string, chainID int64) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = constants.ZeroExBaseURL
	}
	if chainID == 0 {
		chainID = constants.BaseChainID
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		ChainID: chainID,
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("0x http %d", e.StatusCode)
	}
	return fmt.Sprintf("0x http %d: %s", e.StatusCode, b)
}

// Price fetches an indicative price. Taker is optional.
func (c *Client) Price(ctx context.Context, req PriceRequest) (*PriceResponse, error) {
	var out PriceResponse
	if err := c.get(ctx, constants.ZeroExPricePath, req, false, &out); err != nil {
		return nil, err
	}
	if !out.Liquid() {
		return nil, swaperr.New(swaperr.CodeQuoteUnavailable, "no liquidity for pair")
	}
	return &out, nil
}

// Quote fetches a firm quote with the transaction to submit. Taker is required.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	var out QuoteResponse
	if err := c.get(ctx, constants.ZeroExQuotePath, req, true, &out); err != nil {
		return nil, err
	}
	if !out.Liquid() {
		return nil, swaperr.New(swaperr.CodeQuoteUnavailable, "no liquidity for pair")
	}
	if strings.TrimSpace(out.Transaction.To) == "" || strings.TrimSpace(out.Transaction.Data) == "" {
		return nil, swaperr.New(swaperr.CodeQuoteUnavailable, "quote carries no transaction")
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, req PriceRequest, needTaker bool, out any) error {
	if strings.TrimSpace(req.SellToken) == "" {
		return swaperr.New(swaperr.CodeInvalid, "sellToken is required")
	}
	if strings.TrimSpace(req.BuyToken) == "" {
		return swaperr.New(swaperr.CodeInvalid, "buyToken is required")
	}
	if strings.TrimSpace(req.SellAmount) == "" {
		return swaperr.New(swaperr.CodeInvalid, "sellAmount is required")
	}
	if needTaker && strings.TrimSpace(req.Taker) == "" {
		return swaperr.New(swaperr.CodeInvalid, "taker is required")
	}

	chainID := req.ChainID
	if chainID == 0 {
		chainID = c.ChainID
	}

	q := url.Values{}
	q.Set("chainId", strconv.FormatInt(chainID, 10))
	q.Set("sellToken", req.SellToken)
	q.Set("buyToken", req.BuyToken)
	q.Set("sellAmount", req.SellAmount)
	if req.Taker != "" {
		q.Set("taker", req.Taker)
	}
	if req.SlippageBps != nil {
		q.Set("slippageBps", fmt.Sprintf("%d", *req.SlippageBps))
	}

	u := c.BaseURL + path + "?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return swaperr.Wrap(swaperr.CodeQuoteUnavailable, "build request", err)
	}
	httpReq.Header.Set("accept", "application/json")
	httpReq.Header.Set(constants.ZeroExVersionHdr, constants.ZeroExVersion)
	if c.APIKey != "" {
		httpReq.Header.Set(constants.ZeroExAPIKeyHeader, c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return swaperr.Wrap(swaperr.CodeCancelled, "quote request cancelled", ctx.Err())
		}
		return swaperr.Wrap(swaperr.CodeQuoteUnavailable, "0x request failed", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return swaperr.Wrap(swaperr.CodeQuoteUnavailable, fmt.Sprintf("read 0x response (status %d)", res.StatusCode), err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return swaperr.Wrap(swaperr.CodeQuoteUnavailable, "0x rejected request", &HTTPError{StatusCode: res.StatusCode, Body: body})
	}

	if err := json.Unmarshal(body, out); err != nil {
		return swaperr.Wrap(swaperr.CodeQuoteUnavailable, "decode 0x response", err)
	}
	return nil
}
