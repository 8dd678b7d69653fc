// Package model defines the canonical in-memory data model the governance
// analytics engine computes over. All token amounts are integer base units;
// percentages are derived only at metric-computation or presentation time
// (spec.md §3, §9 Open Questions).
package model

import (
	"math/big"
	"time"
)

// Protocol identifies a governed token and the chain it lives on. Immutable
// within a Snapshot.
type Protocol struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Decimals   uint8  `json:"decimals"`
	// Supply is the total-supply base units as of the snapshot timestamp.
	Supply     *big.Int `json:"supply"`
	ContractID string   `json:"contract_id"`
}

// HolderBalance is a single holder's balance and descending-rank position.
// Rank ties break on lexicographic address bytes (spec.md §3).
type HolderBalance struct {
	Address Address  `json:"address"`
	Balance *big.Int `json:"balance"`
	Rank    int      `json:"rank"`
}

// ProposalStatus enumerates the lifecycle states a Proposal may occupy.
// Terminal statuses (Succeeded, Defeated, Executed, Cancelled, Expired)
// never revert (spec.md §3 invariant).
type ProposalStatus uint8

const (
	ProposalStatusUnspecified ProposalStatus = iota
	ProposalStatusPending
	ProposalStatusActive
	ProposalStatusSucceeded
	ProposalStatusDefeated
	ProposalStatusExecuted
	ProposalStatusCancelled
	ProposalStatusExpired
)

// String renders a developer-friendly status name for logs and JSON output
// fields that intentionally diverge from the zero-indexed wire encoding.
func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusPending:
		return "pending"
	case ProposalStatusActive:
		return "active"
	case ProposalStatusSucceeded:
		return "succeeded"
	case ProposalStatusDefeated:
		return "defeated"
	case ProposalStatusExecuted:
		return "executed"
	case ProposalStatusCancelled:
		return "cancelled"
	case ProposalStatusExpired:
		return "expired"
	default:
		return "unspecified"
	}
}

// Terminal reports whether the status is a terminal state that may never
// revert once reached.
func (s ProposalStatus) Terminal() bool {
	switch s {
	case ProposalStatusSucceeded, ProposalStatusDefeated, ProposalStatusExecuted,
		ProposalStatusCancelled, ProposalStatusExpired:
		return true
	default:
		return false
	}
}

// Tallies captures the running for/against/abstain vote totals for a
// Proposal. Tallies never decrease as votes stream in (spec.md §3 invariant).
type Tallies struct {
	For     *big.Int `json:"for"`
	Against *big.Int `json:"against"`
	Abstain *big.Int `json:"abstain"`
}

// Proposal is a discrete governance item submitted for binding voting.
type Proposal struct {
	ProtocolID   string         `json:"protocol_id"`
	ID           string         `json:"id"`
	Proposer     Address        `json:"proposer"`
	CreatedAt    time.Time      `json:"created_at"`
	VotingStart  time.Time      `json:"voting_start"`
	VotingEnd    time.Time      `json:"voting_end"`
	Status       ProposalStatus `json:"status"`
	Quorum       *big.Int       `json:"quorum"`
	Tallies      Tallies        `json:"tallies"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// VoteChoice enumerates the supported ballot selections.
type VoteChoice uint8

const (
	VoteChoiceUnspecified VoteChoice = iota
	VoteChoiceFor
	VoteChoiceAgainst
	VoteChoiceAbstain
)

func (c VoteChoice) String() string {
	switch c {
	case VoteChoiceFor:
		return "for"
	case VoteChoiceAgainst:
		return "against"
	case VoteChoiceAbstain:
		return "abstain"
	default:
		return "unspecified"
	}
}

// Vote is a single participant's ballot on a proposal, including the voting
// power snapshot at cast time (spec.md §3: "a defined reference block").
type Vote struct {
	ProposalID string     `json:"proposal_id"`
	Voter      Address    `json:"voter"`
	Choice     VoteChoice `json:"choice"`
	Power      *big.Int   `json:"power"`
	CastAt     time.Time  `json:"cast_at"`
}

// DelegationAmount represents either a fixed base-unit amount or a "full"
// delegation that tracks the delegator's balance as it changes.
type DelegationAmount struct {
	Full   bool     `json:"full"`
	Amount *big.Int `json:"amount,omitempty"`
}

// Delegation assigns voting power from Delegator to Delegatee without
// transferring ownership. A delegator has at most one active delegatee
// (spec.md §3 invariant); the delegation graph has no self-loops.
type Delegation struct {
	Delegator     Address          `json:"delegator"`
	Delegatee     Address          `json:"delegatee"`
	EffectiveFrom time.Time        `json:"effective_from"`
	Amount        DelegationAmount `json:"amount"`
}

// Provenance labels the data tier a Snapshot's underlying data was sourced
// from (spec.md §3, glossary).
type Provenance string

const (
	ProvenanceLive           Provenance = "live"
	ProvenanceFallbackFree   Provenance = "fallback-free-tier"
	ProvenanceCached         Provenance = "cached"
	ProvenanceSimulated      Provenance = "simulated"
)

// Weight orders provenance tiers from strongest to weakest so the
// Coordinator can pick "the weakest tier wins the snapshot provenance"
// (spec.md §4.2 step 5) when kinds are forced to mix.
func (p Provenance) Weight() int {
	switch p {
	case ProvenanceLive:
		return 0
	case ProvenanceCached:
		return 1
	case ProvenanceFallbackFree:
		return 2
	case ProvenanceSimulated:
		return 3
	default:
		return 99
	}
}

// Weaker reports whether p is a weaker (less authoritative) tier than other.
func (p Provenance) Weaker(other Provenance) bool {
	return p.Weight() > other.Weight()
}

// MetricSet holds the computed analytical results for a Snapshot, keyed by
// metric name so the Snapshot Store's series() query can project any one of
// them without knowing every metric's concrete type up front.
type MetricSet map[string]float64

// Snapshot bundles the analytical inputs and outputs for one
// (protocol, timestamp). Snapshots are immutable once persisted; superseded
// snapshots remain queryable (spec.md §3 lifecycle).
type Snapshot struct {
	Protocol    Protocol        `json:"protocol"`
	Timestamp   time.Time       `json:"timestamp"`
	Holders     []HolderBalance `json:"holders"`
	Proposals   []Proposal      `json:"proposals"`
	Votes       []Vote          `json:"votes"`
	Delegations []Delegation    `json:"delegations"`
	Metrics     MetricSet       `json:"metrics"`
	Provenance  Provenance      `json:"provenance"`
	Degraded    bool            `json:"degraded"`
}

// VotingBlock is a derived set of voters whose pairwise co-voting agreement
// exceeds a configured threshold. Not independently persisted; recomputed
// from a Snapshot on demand (spec.md §3).
type VotingBlock struct {
	Members  []Address `json:"members"`
	Power    *big.Int  `json:"power"`
	Cohesion float64   `json:"cohesion"`
	Influence float64  `json:"influence"`
}

// Key identifies a Snapshot for store lookups and cross-snapshot references,
// which use (protocol, timestamp, id) keys rather than shared handles
// (spec.md §3 Ownership).
type Key struct {
	ProtocolID string
	Timestamp  time.Time
}
