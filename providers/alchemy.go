package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sort"
	"strings"
	"time"

	"govanalytics/errs"
	"govanalytics/model"
)

// AlchemyAdapter is a source with no holder index: it reconstructs balances
// by replaying ERC-20 Transfer logs and reducing them, per spec.md §4.1. The
// replay always covers the earliest through the latest block; it is not
// bounded by a floor or by the snapshot time. It has no governance index, so
// proposals/votes/delegations return NotSupported.
type AlchemyAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client

	// ReplayWindow is set by NewAlchemyAdapter but not read: FetchHolders
	// replays the full log history regardless of its value.
	ReplayWindow time.Duration
}

const erc20TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// NewAlchemyAdapter constructs an adapter. An empty apiKey fails FetchHolders
// AuthMissing; the other calls return NotSupported either way.
func NewAlchemyAdapter(apiKey string, client *http.Client) *AlchemyAdapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &AlchemyAdapter{
		apiKey:       apiKey,
		baseURL:      "https://eth-mainnet.g.alchemy.com/v2/",
		client:       client,
		ReplayWindow: 30 * 24 * time.Hour,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type transferLog struct {
	Topics []string `json:"topics"`
	Data   string   `json:"data"`
}

func (a *AlchemyAdapter) SourceID() string { return "alchemy" }

func (a *AlchemyAdapter) FreeTier() bool { return false }

// FetchHolders replays Transfer(from, to, value) logs for protocol (an
// ERC-20 contract address) from the earliest to the latest block, reduces them to
// balances, and emits rank order by descending balance. Ties break on
// lexicographic address (model.Address.Less), matching the engine's
// deterministic-rank rule.
func (a *AlchemyAdapter) FetchHolders(ctx context.Context, protocol string, limit int, cursor string) (HolderPage, error) {
	if strings.TrimSpace(a.apiKey) == "" {
		return HolderPage{}, errs.New(errs.KindAuthMissing, "FetchHolders", a.SourceID(), nil)
	}

	logs, err := a.getLogs(ctx, protocol)
	if err != nil {
		return HolderPage{}, err
	}

	balances := map[model.Address]*big.Int{}
	for _, lg := range logs {
		if len(lg.Topics) < 3 {
			continue
		}
		from, err := topicToAddress(lg.Topics[1])
		if err != nil {
			continue
		}
		to, err := topicToAddress(lg.Topics[2])
		if err != nil {
			continue
		}
		value, ok := new(big.Int).SetString(strings.TrimPrefix(lg.Data, "0x"), 16)
		if !ok {
			continue
		}
		if !from.IsZero() {
			cur := balanceOrZero(balances, from)
			balances[from] = new(big.Int).Sub(cur, value)
		}
		cur := balanceOrZero(balances, to)
		balances[to] = new(big.Int).Add(cur, value)
	}

	holders := make([]model.HolderBalance, 0, len(balances))
	for addr, bal := range balances {
		if bal.Sign() <= 0 {
			continue
		}
		holders = append(holders, model.HolderBalance{Address: addr, Balance: bal})
	}
	sort.Slice(holders, func(i, j int) bool {
		c := holders[i].Balance.Cmp(holders[j].Balance)
		if c != 0 {
			return c > 0
		}
		return holders[i].Address.Less(holders[j].Address)
	})
	for i := range holders {
		holders[i].Rank = i + 1
	}

	if limit > 0 && len(holders) > limit {
		holders = holders[:limit]
	}
	return HolderPage{Holders: holders, HasMore: false}, nil
}

func (a *AlchemyAdapter) FetchProposals(ctx context.Context, protocol string, since, until time.Time) ([]ProposalRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchProposals", a.SourceID(), nil)
}

func (a *AlchemyAdapter) FetchVotes(ctx context.Context, protocol, proposalID string) ([]VoteRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchVotes", a.SourceID(), nil)
}

func (a *AlchemyAdapter) FetchDelegations(ctx context.Context, protocol string, since, until time.Time) ([]DelegationRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchDelegations", a.SourceID(), nil)
}

func (a *AlchemyAdapter) getLogs(ctx context.Context, contract string) ([]transferLog, error) {
	params := []any{map[string]any{
		"fromBlock": "earliest",
		"toBlock":   "latest",
		"address":   contract,
		"topics":    []string{erc20TransferTopic},
	}}
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: "eth_getLogs", Params: params})
	if err != nil {
		return nil, errs.New(errs.KindInternal, "getLogs", a.SourceID(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+a.apiKey, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errs.New(errs.KindInternal, "getLogs", a.SourceID(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.New(errs.KindCancelled, "getLogs", a.SourceID(), ctx.Err())
		}
		return nil, errs.New(errs.KindTransientUnavailable, "getLogs", a.SourceID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.New(errs.KindRateLimited, "getLogs", a.SourceID(), nil)
	}
	if resp.StatusCode >= 500 {
		return nil, errs.New(errs.KindTransientUnavailable, "getLogs", a.SourceID(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.KindPermanentSchema, "getLogs", a.SourceID(), fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.New(errs.KindPermanentSchema, "getLogs", a.SourceID(), err)
	}
	if parsed.Error != nil {
		return nil, errs.New(errs.KindPermanentSchema, "getLogs", a.SourceID(), fmt.Errorf("rpc error %d: %s", parsed.Error.Code, parsed.Error.Message))
	}
	var logs []transferLog
	if err := json.Unmarshal(parsed.Result, &logs); err != nil {
		return nil, errs.New(errs.KindPermanentSchema, "getLogs", a.SourceID(), err)
	}
	return logs, nil
}

func balanceOrZero(m map[model.Address]*big.Int, addr model.Address) *big.Int {
	if v, ok := m[addr]; ok {
		return v
	}
	return big.NewInt(0)
}

func topicToAddress(topic string) (model.Address, error) {
	topic = strings.TrimPrefix(topic, "0x")
	if len(topic) < 40 {
		return model.Address{}, fmt.Errorf("short topic %q", topic)
	}
	return model.ParseAddress(topic[len(topic)-40:])
}
