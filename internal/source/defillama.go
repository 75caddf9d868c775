package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/cache"
	"github.com/yourorg/token-research-api/internal/config"
	"github.com/yourorg/token-research-api/internal/model"
)

// DefiLlama matches the token against the DefiLlama protocol registry and
// reports TVL and protocol metadata when a protocol matches.
type DefiLlama struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
}

// NewDefiLlama creates a DefiLlama adapter.
func NewDefiLlama(cfg config.Config, c *cache.Cache) *DefiLlama {
	return &DefiLlama{
		baseURL:    cfg.DefiLlamaURL,
		httpClient: StandardClient(newRetryClient()),
		cache:      c,
	}
}

func (d *DefiLlama) Name() string          { return "defillama" }
func (d *DefiLlama) RequiresAddress() bool { return false }

type llamaProtocol struct {
	Name       string   `json:"name"`
	Symbol     string   `json:"symbol"`
	Slug       string   `json:"slug"`
	TVL        float64  `json:"tvl"`
	Change1d   float64  `json:"change_1d"`
	Change7d   float64  `json:"change_7d"`
	Chains     []string `json:"chains"`
	Category   string   `json:"category"`
	Audits     string   `json:"audits"`
	AuditLinks []string `json:"audit_links"`
	URL        string   `json:"url"`
	Twitter    string   `json:"twitter"`
}

// Fetch searches the protocol list for a name or symbol match. Most
// tokens are not DeFi protocols; a clean miss is Found=false without an
// error.
func (d *DefiLlama) Fetch(ctx context.Context, q Query) model.SourceResult {
	cacheKey := "defillama_" + q.ID
	if cached, ok := d.cache.Get(cacheKey); ok {
		return cached
	}

	var protocols []llamaProtocol
	if err := getJSON(ctx, d.httpClient, d.baseURL+"/protocols", nil, &protocols); err != nil {
		result := model.Failed(d.Name(), err)
		d.cache.Set(cacheKey, result)
		return result
	}

	match := matchProtocol(protocols, q)
	if match == nil {
		result := model.NotFound(d.Name())
		d.cache.Set(cacheKey, result)
		return result
	}

	info := &model.ProtocolInfo{
		Name:         match.Name,
		Slug:         match.Slug,
		TVL:          match.TVL,
		TVLChange24h: match.Change1d,
		TVLChange7d:  match.Change7d,
		Chains:       match.Chains,
		Category:     match.Category,
		Audits:       match.Audits,
		AuditLinks:   match.AuditLinks,
		Website:      match.URL,
		Twitter:      match.Twitter,
	}

	// Detail call enriches governance data; a failure here does not fail
	// the whole lookup
	var detail struct {
		GovernanceID []string `json:"governanceID"`
	}
	detailURL := fmt.Sprintf("%s/protocol/%s", d.baseURL, url.PathEscape(match.Slug))
	if err := getJSON(ctx, d.httpClient, detailURL, nil, &detail); err != nil {
		logrus.Debugf("DefiLlama detail lookup failed for %s: %v", match.Slug, err)
	} else {
		info.Governance = detail.GovernanceID
	}

	result := model.SourceResult{
		Source: d.Name(),
		Found:  true,
		Data:   &model.SourceData{Protocol: info},
	}
	d.cache.Set(cacheKey, result)
	return result
}

// matchProtocol finds the first protocol whose name contains the token
// name or whose symbol equals the ticker, case-insensitive.
func matchProtocol(protocols []llamaProtocol, q Query) *llamaProtocol {
	name := strings.ToLower(q.Name)
	id := strings.ToLower(q.ID)
	symbol := strings.ToLower(q.Symbol)

	for i := range protocols {
		p := &protocols[i]
		if name != "" && strings.Contains(strings.ToLower(p.Name), name) {
			return p
		}
		sym := strings.ToLower(p.Symbol)
		if sym != "" && (sym == id || sym == symbol) {
			return p
		}
	}
	return nil
}
