package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"govanalytics/errs"
	"govanalytics/model"
)

// ethplorerFreeKey is Ethplorer's published public API key: unauthenticated
// callers are routed onto it rather than failing AuthMissing, at a far
// tighter rate limit than a registered key (spec.md §3 provenance tag
// "fallback-free-tier").
const ethplorerFreeKey = "freekey"

// EthplorerAdapter fetches holder lists from Ethplorer's token info index.
// Like Etherscan it has no governance index, so proposals/votes/delegations
// return NotSupported.
type EthplorerAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewEthplorerAdapter constructs an adapter. An empty apiKey routes every
// call onto the shared free-tier key instead of failing AuthMissing.
func NewEthplorerAdapter(apiKey string, client *http.Client) *EthplorerAdapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &EthplorerAdapter{apiKey: apiKey, baseURL: "https://api.ethplorer.io", client: client}
}

func (a *EthplorerAdapter) SourceID() string { return "ethplorer" }

// FreeTier reports whether this call is served on Ethplorer's shared
// rate-limited key rather than a registered one.
func (a *EthplorerAdapter) FreeTier() bool { return strings.TrimSpace(a.apiKey) == "" }

func (a *EthplorerAdapter) key() string {
	if strings.TrimSpace(a.apiKey) == "" {
		return ethplorerFreeKey
	}
	return a.apiKey
}

type ethplorerHolder struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
	RawBal  string  `json:"rawBalance"`
}

type ethplorerTopResponse struct {
	Holders []ethplorerHolder `json:"holders"`
}

type ethplorerInfoResponse struct {
	TotalSupply string `json:"totalSupply"`
}

// FetchHolders lists a token's holders by descending balance; Ethplorer has
// no cursor concept, so the full list is returned on the first call and
// HasMore is always false.
func (a *EthplorerAdapter) FetchHolders(ctx context.Context, protocol string, limit int, cursor string) (HolderPage, error) {
	q := url.Values{}
	q.Set("apiKey", a.key())
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	var parsed ethplorerTopResponse
	if err := a.get(ctx, fmt.Sprintf("/getTopTokenHolders/%s", protocol), q, &parsed); err != nil {
		return HolderPage{}, err
	}
	holders := make([]model.HolderBalance, 0, len(parsed.Holders))
	for _, h := range parsed.Holders {
		addr, err := model.ParseAddress(h.Address)
		if err != nil {
			continue
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(h.RawBal), 10)
		if !ok {
			continue
		}
		holders = append(holders, model.HolderBalance{Address: addr, Balance: balance})
	}
	var supply *big.Int
	var info ethplorerInfoResponse
	infoQ := url.Values{}
	infoQ.Set("apiKey", a.key())
	if err := a.get(ctx, fmt.Sprintf("/getTokenInfo/%s", protocol), infoQ, &info); err == nil {
		if s, ok := new(big.Int).SetString(strings.TrimSpace(info.TotalSupply), 10); ok {
			supply = s
		}
	}
	return HolderPage{Holders: holders, Supply: supply}, nil
}

func (a *EthplorerAdapter) FetchProposals(ctx context.Context, protocol string, since, until time.Time) ([]ProposalRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchProposals", a.SourceID(), nil)
}

func (a *EthplorerAdapter) FetchVotes(ctx context.Context, protocol, proposalID string) ([]VoteRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchVotes", a.SourceID(), nil)
}

func (a *EthplorerAdapter) FetchDelegations(ctx context.Context, protocol string, since, until time.Time) ([]DelegationRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchDelegations", a.SourceID(), nil)
}

func (a *EthplorerAdapter) get(ctx context.Context, path string, q url.Values, out any) error {
	reqURL := a.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errs.New(errs.KindInternal, "get", a.SourceID(), err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errs.New(errs.KindCancelled, "get", a.SourceID(), ctx.Err())
		}
		return errs.New(errs.KindTransientUnavailable, "get", a.SourceID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errs.New(errs.KindRateLimited, "get", a.SourceID(), nil)
	}
	if resp.StatusCode >= 500 {
		return errs.New(errs.KindTransientUnavailable, "get", a.SourceID(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.KindPermanentSchema, "get", a.SourceID(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.New(errs.KindPermanentSchema, "get", a.SourceID(), err)
	}
	return nil
}
