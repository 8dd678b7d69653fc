package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"govanalytics/errs"
	"govanalytics/model"
)

// EtherscanAdapter fetches holder lists via Etherscan's token holder index.
// Etherscan has no proposal/vote/delegation index, so those three operations
// return NotSupported (spec.md §4.1): "source lacks this capability".
type EtherscanAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewEtherscanAdapter constructs an adapter. An empty apiKey means every
// call fails AuthMissing, per spec.md §6.
func NewEtherscanAdapter(apiKey string, client *http.Client) *EtherscanAdapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &EtherscanAdapter{apiKey: apiKey, baseURL: "https://api.etherscan.io/api", client: client}
}

func (a *EtherscanAdapter) SourceID() string { return "etherscan" }

func (a *EtherscanAdapter) FreeTier() bool { return false }

type etherscanHolderEntry struct {
	Address  string `json:"TokenHolderAddress"`
	Quantity string `json:"TokenHolderQuantity"`
}

type etherscanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (a *EtherscanAdapter) FetchHolders(ctx context.Context, protocol string, limit int, cursor string) (HolderPage, error) {
	if strings.TrimSpace(a.apiKey) == "" {
		return HolderPage{}, errs.New(errs.KindAuthMissing, "FetchHolders", a.SourceID(), nil)
	}
	page := 1
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return HolderPage{}, errs.New(errs.KindPermanentSchema, "FetchHolders", a.SourceID(), fmt.Errorf("invalid cursor %q: %w", cursor, err))
		}
		page = parsed
	}
	q := url.Values{}
	q.Set("module", "token")
	q.Set("action", "tokenholderlist")
	q.Set("contractaddress", protocol)
	q.Set("page", strconv.Itoa(page))
	q.Set("offset", strconv.Itoa(limit))
	q.Set("apikey", a.apiKey)

	body, err := a.get(ctx, q)
	if err != nil {
		return HolderPage{}, err
	}
	var entries []etherscanHolderEntry
	if err := json.Unmarshal(body.Result, &entries); err != nil {
		return HolderPage{}, errs.New(errs.KindPermanentSchema, "FetchHolders", a.SourceID(), err)
	}
	holders := make([]model.HolderBalance, 0, len(entries))
	for _, e := range entries {
		addr, err := model.ParseAddress(e.Address)
		if err != nil {
			continue
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(e.Quantity), 10)
		if !ok {
			continue
		}
		holders = append(holders, model.HolderBalance{Address: addr, Balance: balance})
	}
	return HolderPage{
		Holders: holders,
		Cursor:  strconv.Itoa(page + 1),
		HasMore: len(entries) == limit,
	}, nil
}

func (a *EtherscanAdapter) FetchProposals(ctx context.Context, protocol string, since, until time.Time) ([]ProposalRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchProposals", a.SourceID(), nil)
}

func (a *EtherscanAdapter) FetchVotes(ctx context.Context, protocol, proposalID string) ([]VoteRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchVotes", a.SourceID(), nil)
}

func (a *EtherscanAdapter) FetchDelegations(ctx context.Context, protocol string, since, until time.Time) ([]DelegationRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchDelegations", a.SourceID(), nil)
}

func (a *EtherscanAdapter) get(ctx context.Context, q url.Values) (etherscanResponse, error) {
	reqURL := a.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return etherscanResponse{}, errs.New(errs.KindInternal, "get", a.SourceID(), err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return etherscanResponse{}, errs.New(errs.KindCancelled, "get", a.SourceID(), ctx.Err())
		}
		return etherscanResponse{}, errs.New(errs.KindTransientUnavailable, "get", a.SourceID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfterMS := int64(0)
		if h := resp.Header.Get("Retry-After"); h != "" {
			if secs, convErr := strconv.Atoi(h); convErr == nil {
				retryAfterMS = int64(secs) * 1000
			}
		}
		return etherscanResponse{}, errs.New(errs.KindRateLimited, "get", a.SourceID(), nil).WithRetryAfter(retryAfterMS)
	}
	if resp.StatusCode >= 500 {
		return etherscanResponse{}, errs.New(errs.KindTransientUnavailable, "get", a.SourceID(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return etherscanResponse{}, errs.New(errs.KindPermanentSchema, "get", a.SourceID(), fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed etherscanResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return etherscanResponse{}, errs.New(errs.KindPermanentSchema, "get", a.SourceID(), err)
	}
	if parsed.Status == "0" && strings.Contains(strings.ToLower(parsed.Message), "rate limit") {
		return etherscanResponse{}, errs.New(errs.KindRateLimited, "get", a.SourceID(), fmt.Errorf("%s", parsed.Message))
	}
	return parsed, nil
}
