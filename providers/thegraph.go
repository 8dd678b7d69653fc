package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"govanalytics/errs"
)

// TheGraphAdapter queries a governance subgraph over GraphQL. It answers
// proposals, votes, and delegations; it has no holder index so FetchHolders
// returns NotSupported (spec.md §4.1).
type TheGraphAdapter struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewTheGraphAdapter constructs an adapter bound to a subgraph endpoint. An
// empty apiKey fails every subgraph query AuthMissing; FetchHolders returns
// NotSupported either way.
func NewTheGraphAdapter(apiKey, endpoint string, client *http.Client) *TheGraphAdapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TheGraphAdapter{apiKey: apiKey, endpoint: endpoint, client: client}
}

func (a *TheGraphAdapter) SourceID() string { return "thegraph" }

func (a *TheGraphAdapter) FreeTier() bool { return false }

func (a *TheGraphAdapter) FetchHolders(ctx context.Context, protocol string, limit int, cursor string) (HolderPage, error) {
	return HolderPage{}, errs.New(errs.KindNotSupported, "FetchHolders", a.SourceID(), nil)
}

type graphProposal struct {
	ID          string            `json:"id"`
	Proposer    string            `json:"proposer"`
	CreatedAt   int64             `json:"createdAt"`
	VotingStart int64             `json:"votingStart"`
	VotingEnd   int64             `json:"votingEnd"`
	Status      string            `json:"status"`
	Quorum      string            `json:"quorum"`
	ForVotes    string            `json:"forVotes"`
	AgainstVotes string           `json:"againstVotes"`
	AbstainVotes string           `json:"abstainVotes"`
	Metadata    map[string]string `json:"metadata"`
}

func (a *TheGraphAdapter) FetchProposals(ctx context.Context, protocol string, since, until time.Time) ([]ProposalRecord, error) {
	query := `query($gov: String!, $since: Int!, $until: Int!) {
		proposals(where: {governance: $gov, createdAt_gte: $since, createdAt_lte: $until}) {
			id proposer createdAt votingStart votingEnd status quorum forVotes againstVotes abstainVotes metadata
		}
	}`
	vars := map[string]any{
		"gov":   protocol,
		"since": since.Unix(),
		"until": until.Unix(),
	}
	var body struct {
		Proposals []graphProposal `json:"proposals"`
	}
	if err := a.query(ctx, query, vars, &body); err != nil {
		return nil, err
	}
	out := make([]ProposalRecord, 0, len(body.Proposals))
	for _, p := range body.Proposals {
		out = append(out, ProposalRecord{
			ProtocolID:   protocol,
			ID:           p.ID,
			Proposer:     p.Proposer,
			CreatedAt:    time.Unix(p.CreatedAt, 0).UTC(),
			VotingStart:  time.Unix(p.VotingStart, 0).UTC(),
			VotingEnd:    time.Unix(p.VotingEnd, 0).UTC(),
			Status:       p.Status,
			Quorum:       p.Quorum,
			ForVotes:     p.ForVotes,
			AgainstVotes: p.AgainstVotes,
			AbstainVotes: p.AbstainVotes,
			Metadata:     p.Metadata,
		})
	}
	return out, nil
}

type graphVote struct {
	Voter  string `json:"voter"`
	Choice string `json:"choice"`
	Power  string `json:"power"`
	CastAt int64  `json:"castAt"`
}

func (a *TheGraphAdapter) FetchVotes(ctx context.Context, protocol, proposalID string) ([]VoteRecord, error) {
	query := `query($proposal: String!) {
		votes(where: {proposal: $proposal}) { voter choice power castAt }
	}`
	vars := map[string]any{"proposal": proposalID}
	var body struct {
		Votes []graphVote `json:"votes"`
	}
	if err := a.query(ctx, query, vars, &body); err != nil {
		return nil, err
	}
	out := make([]VoteRecord, 0, len(body.Votes))
	for _, v := range body.Votes {
		out = append(out, VoteRecord{
			ProposalID: proposalID,
			Voter:      v.Voter,
			Choice:     v.Choice,
			Power:      v.Power,
			CastAt:     time.Unix(v.CastAt, 0).UTC(),
		})
	}
	return out, nil
}

type graphDelegation struct {
	Delegator     string `json:"delegator"`
	Delegatee     string `json:"delegatee"`
	EffectiveFrom int64  `json:"effectiveFrom"`
	Full          bool   `json:"full"`
	Amount        string `json:"amount"`
}

func (a *TheGraphAdapter) FetchDelegations(ctx context.Context, protocol string, since, until time.Time) ([]DelegationRecord, error) {
	query := `query($gov: String!, $since: Int!, $until: Int!) {
		delegations(where: {governance: $gov, effectiveFrom_gte: $since, effectiveFrom_lte: $until}) {
			delegator delegatee effectiveFrom full amount
		}
	}`
	vars := map[string]any{
		"gov":   protocol,
		"since": since.Unix(),
		"until": until.Unix(),
	}
	var body struct {
		Delegations []graphDelegation `json:"delegations"`
	}
	if err := a.query(ctx, query, vars, &body); err != nil {
		return nil, err
	}
	out := make([]DelegationRecord, 0, len(body.Delegations))
	for _, d := range body.Delegations {
		out = append(out, DelegationRecord{
			Delegator:     d.Delegator,
			Delegatee:     d.Delegatee,
			EffectiveFrom: time.Unix(d.EffectiveFrom, 0).UTC(),
			Full:          d.Full,
			Amount:        d.Amount,
		})
	}
	return out, nil
}

type graphRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphError struct {
	Message string `json:"message"`
}

type graphResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphError    `json:"errors"`
}

func (a *TheGraphAdapter) query(ctx context.Context, query string, vars map[string]any, dest any) error {
	if strings.TrimSpace(a.apiKey) == "" {
		return errs.New(errs.KindAuthMissing, "query", a.SourceID(), nil)
	}
	payload, err := json.Marshal(graphRequest{Query: query, Variables: vars})
	if err != nil {
		return errs.New(errs.KindInternal, "query", a.SourceID(), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errs.New(errs.KindInternal, "query", a.SourceID(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errs.New(errs.KindCancelled, "query", a.SourceID(), ctx.Err())
		}
		return errs.New(errs.KindTransientUnavailable, "query", a.SourceID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errs.New(errs.KindRateLimited, "query", a.SourceID(), nil)
	}
	if resp.StatusCode >= 500 {
		return errs.New(errs.KindTransientUnavailable, "query", a.SourceID(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errs.New(errs.KindAuthMissing, "query", a.SourceID(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.KindPermanentSchema, "query", a.SourceID(), fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed graphResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return errs.New(errs.KindPermanentSchema, "query", a.SourceID(), err)
	}
	if len(parsed.Errors) > 0 {
		return errs.New(errs.KindPermanentSchema, "query", a.SourceID(), fmt.Errorf("%s", parsed.Errors[0].Message))
	}
	if err := json.Unmarshal(parsed.Data, dest); err != nil {
		return errs.New(errs.KindPermanentSchema, "query", a.SourceID(), err)
	}
	return nil
}
