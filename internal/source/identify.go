package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/types"
)

// solanaAddressRe matches base58 strings of Solana address length.
var solanaAddressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// Identification is the resolved meaning of a raw user query: either a
// contract address on a known chain, or a coin matched by search.
type Identification struct {
	Query           string
	ContractAddress string
	Chain           types.SupportedChain

	// Set when search resolved the query to a listed coin
	CoinID string
	Symbol string
	Name   string
}

// IsAddress reports whether the query was recognized as a raw contract
// address rather than a name or ticker.
func (id Identification) IsAddress() bool {
	return id.ContractAddress != "" && id.CoinID == ""
}

// Identify classifies a raw query string. Hex addresses are taken as EVM
// contracts, base58 strings of the right length as Solana mints, and
// everything else goes through coin search. Only an unusable search
// (transport failure or zero hits) returns an error.
func (c *CoinGecko) Identify(ctx context.Context, query string) (Identification, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Identification{}, fmt.Errorf("empty query")
	}

	if common.IsHexAddress(query) {
		return Identification{
			Query:           query,
			ContractAddress: common.HexToAddress(query).Hex(),
			Chain:           types.ChainEthereum,
		}, nil
	}
	if solanaAddressRe.MatchString(query) {
		return Identification{
			Query:           query,
			ContractAddress: query,
			Chain:           types.ChainSolana,
		}, nil
	}

	hits, err := c.Search(ctx, query)
	if err != nil {
		return Identification{}, fmt.Errorf("identify %q: %w", query, err)
	}
	if len(hits) == 0 {
		return Identification{}, fmt.Errorf("identify %q: no matching coins", query)
	}

	// Exact symbol match beats search ranking
	best := hits[0]
	for _, h := range hits {
		if strings.EqualFold(h.Symbol, query) {
			best = h
			break
		}
	}

	logrus.WithFields(logrus.Fields{"query": query, "coin": best.ID}).Debug("identified token via search")
	return Identification{
		Query:  query,
		CoinID: best.ID,
		Symbol: strings.ToUpper(best.Symbol),
		Name:   best.Name,
	}, nil
}
