package model

import (
	"math/big"
	"testing"
	"time"
)

func TestProposalStatusTerminal(t *testing.T) {
	cases := map[ProposalStatus]bool{
		ProposalStatusPending:   false,
		ProposalStatusActive:    false,
		ProposalStatusSucceeded: true,
		ProposalStatusDefeated:  true,
		ProposalStatusExecuted:  true,
		ProposalStatusCancelled: true,
		ProposalStatusExpired:   true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Errorf("status %v: Terminal()=%v, want %v", status, got, want)
		}
	}
}

func TestProvenanceWeaker(t *testing.T) {
	if !ProvenanceSimulated.Weaker(ProvenanceLive) {
		t.Fatalf("expected simulated to be weaker than live")
	}
	if ProvenanceLive.Weaker(ProvenanceSimulated) {
		t.Fatalf("live should not be weaker than simulated")
	}
	if ProvenanceCached.Weaker(ProvenanceCached) {
		t.Fatalf("equal tiers should not be weaker than each other")
	}
}

func TestAddressLessAndRoundTrip(t *testing.T) {
	a := Address{0x01}
	b := Address{0x02}
	if !a.Less(b) {
		t.Fatalf("expected a < b")
	}
	if b.Less(a) {
		t.Fatalf("expected b not < a")
	}

	parsed, err := ParseAddress(a.String())
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if parsed != a {
		t.Fatalf("round trip mismatch: got %v, want %v", parsed, a)
	}
}

func TestAddressParseInvalid(t *testing.T) {
	if _, err := ParseAddress("0xnothex"); err == nil {
		t.Fatalf("expected error for non-hex address")
	}
	if _, err := ParseAddress("0x01"); err == nil {
		t.Fatalf("expected error for short address")
	}
}

func TestSnapshotHoldersSumInvariant(t *testing.T) {
	supply := big.NewInt(1000)
	snap := Snapshot{
		Protocol: Protocol{ID: "p1", Supply: supply},
		Holders: []HolderBalance{
			{Address: Address{1}, Balance: big.NewInt(400), Rank: 1},
			{Address: Address{2}, Balance: big.NewInt(300), Rank: 2},
		},
		Timestamp: time.Unix(0, 0).UTC(),
	}
	sum := big.NewInt(0)
	for _, h := range snap.Holders {
		sum.Add(sum, h.Balance)
	}
	if sum.Cmp(supply) > 0 {
		t.Fatalf("sum of balances %s exceeds supply %s", sum, supply)
	}
}
