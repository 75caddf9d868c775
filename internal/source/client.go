// Package source provides provider-specific adapters for retrieving token
// data from public market-data APIs. Every adapter satisfies the same
// contract: Fetch never fails outright, all error modes are folded into a
// SourceResult with Found=false.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/token-research-api/internal/model"
	"github.com/yourorg/token-research-api/internal/types"
)

// Query identifies the token an adapter should look up. Adapters read
// only the fields relevant to their provider.
type Query struct {
	// ID is the CoinGecko identifier, e.g. "uniswap"
	ID string

	// Symbol is the ticker, e.g. "UNI"
	Symbol string

	// Name is the display name, e.g. "Uniswap"
	Name string

	// ContractAddress is the deployment address, empty for native coins
	ContractAddress string

	// Chain is the network the contract lives on
	Chain types.SupportedChain
}

// HasAddress reports whether the query carries a contract address.
func (q Query) HasAddress() bool {
	return q.ContractAddress != ""
}

// Adapter is the interface every provider client implements.
type Adapter interface {
	// Name returns the adapter identifier used in results and precedence lists
	Name() string

	// RequiresAddress reports whether the provider can only be queried by
	// contract address
	RequiresAddress() bool

	// Fetch retrieves and normalizes provider data; it never returns an
	// error, all failures are carried inside the SourceResult
	Fetch(ctx context.Context, q Query) model.SourceResult
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}

// getJSON performs a GET request and decodes the JSON response into out.
// Non-2xx statuses and malformed bodies are returned as errors.
func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
