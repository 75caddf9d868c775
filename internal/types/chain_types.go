// Package types contains shared type definitions used across multiple packages
package types

// SupportedChain represents a blockchain network a token contract can live on
type SupportedChain string

// Supported blockchain networks
const (
	ChainEthereum SupportedChain = "ethereum"
	ChainPolygon  SupportedChain = "polygon"
	ChainArbitrum SupportedChain = "arbitrum"
	ChainOptimism SupportedChain = "optimism"
	ChainBSC      SupportedChain = "binance"
	ChainBase     SupportedChain = "base"
	ChainSolana   SupportedChain = "solana"
)

// IsEVM reports whether contract addresses on the chain use the 0x hex format.
func (c SupportedChain) IsEVM() bool {
	switch c {
	case ChainEthereum, ChainPolygon, ChainArbitrum, ChainOptimism, ChainBSC, ChainBase:
		return true
	}
	return false
}

// ExplorerConfig holds per-chain block-explorer settings for the adapters
// that need chain-specific endpoints or keys.
type ExplorerConfig struct {
	Enabled     bool   `json:"enabled"`
	APIEndpoint string `json:"api_endpoint"`
	APIKey      string `json:"api_key,omitempty"`
}
