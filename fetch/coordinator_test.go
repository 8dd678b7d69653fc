package fetch

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govanalytics/config"
	"govanalytics/errs"
	"govanalytics/model"
	"govanalytics/providers"
)

type scriptedAdapter struct {
	id      string
	calls   int
	script  []error
	holders providers.HolderPage
}

func (s *scriptedAdapter) SourceID() string { return s.id }

func (s *scriptedAdapter) FreeTier() bool { return false }

func (s *scriptedAdapter) FetchHolders(ctx context.Context, protocol string, limit int, cursor string) (providers.HolderPage, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.script) && s.script[idx] != nil {
		return providers.HolderPage{}, s.script[idx]
	}
	return s.holders, nil
}

func (s *scriptedAdapter) FetchProposals(ctx context.Context, protocol string, since, until time.Time) ([]providers.ProposalRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchProposals", s.id, nil)
}

func (s *scriptedAdapter) FetchVotes(ctx context.Context, protocol, proposalID string) ([]providers.VoteRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchVotes", s.id, nil)
}

func (s *scriptedAdapter) FetchDelegations(ctx context.Context, protocol string, since, until time.Time) ([]providers.DelegationRecord, error) {
	return nil, errs.New(errs.KindNotSupported, "FetchDelegations", s.id, nil)
}

func testConfig(chain []string) config.Config {
	cfg := config.Default()
	cfg.FallbackChain.Holders = chain
	cfg.Retry = config.RetryConfig{BaseMS: 1, CeilingMS: 5, MaxAttempts: 3}
	cfg.Concurrency = config.ConcurrencyConfig{PerSource: 4, Global: 8}
	return cfg
}

func TestCoordinatorPrimarySucceedsIsLive(t *testing.T) {
	primary := &scriptedAdapter{id: "primary", holders: providers.HolderPage{Holders: []model.HolderBalance{}}}
	sim := &scriptedAdapter{id: "simulator"}
	reg := providers.NewRegistry(primary, sim)
	coord, err := New(reg, testConfig([]string{"primary", "simulator"}), "simulator", 1)
	require.NoError(t, err)

	res, err := coord.FetchHolders(context.Background(), "proto", 10, "", 4)
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceLive, res.Provenance)
	assert.Equal(t, "primary", res.Source)
}

func TestCoordinatorAuthMissingAdvancesToFallback(t *testing.T) {
	primary := &scriptedAdapter{id: "primary", script: []error{errs.New(errs.KindAuthMissing, "FetchHolders", "primary", nil)}}
	secondary := &scriptedAdapter{id: "secondary", holders: providers.HolderPage{}}
	reg := providers.NewRegistry(primary, secondary)
	coord, err := New(reg, testConfig([]string{"primary", "secondary"}), "simulator", 1)
	require.NoError(t, err)

	res, err := coord.FetchHolders(context.Background(), "proto", 10, "", 4)
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceLive, res.Provenance)
	assert.Equal(t, "secondary", res.Source)
}

func TestCoordinatorAllSourcesExhaustedFallsToSimulator(t *testing.T) {
	primary := &scriptedAdapter{id: "primary", script: []error{
		errs.New(errs.KindTransientUnavailable, "FetchHolders", "primary", nil),
		errs.New(errs.KindTransientUnavailable, "FetchHolders", "primary", nil),
		errs.New(errs.KindTransientUnavailable, "FetchHolders", "primary", nil),
	}}
	sim := &scriptedAdapter{id: "simulator", holders: providers.HolderPage{}}
	reg := providers.NewRegistry(primary, sim)
	coord, err := New(reg, testConfig([]string{"primary", "simulator"}), "simulator", 1)
	require.NoError(t, err)

	res, err := coord.FetchHolders(context.Background(), "proto", 10, "", 4)
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceSimulated, res.Provenance)
	assert.Equal(t, "simulator", res.Source)

	log := coord.AuditLog()
	require.NotEmpty(t, log)
	found := false
	for _, rec := range log {
		if rec.Event == AuditEventDegraded {
			found = true
		}
	}
	assert.True(t, found, "expected a degraded audit record")
}

func TestCoordinatorCacheHitBypassesFallback(t *testing.T) {
	primary := &scriptedAdapter{id: "primary", holders: providers.HolderPage{}}
	reg := providers.NewRegistry(primary)
	coord, err := New(reg, testConfig([]string{"primary"}), "simulator", 1)
	require.NoError(t, err)

	_, err = coord.FetchHolders(context.Background(), "proto", 10, "", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)

	res, err := coord.FetchHolders(context.Background(), "proto", 10, "", 4)
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceCached, res.Provenance)
	assert.Equal(t, 1, primary.calls, "second call should hit cache, not the adapter")
}

func TestCoordinatorAllSourcesExhaustedNoSimulatorSurfacesError(t *testing.T) {
	primary := &scriptedAdapter{id: "primary", script: []error{
		errs.New(errs.KindAuthMissing, "FetchHolders", "primary", nil),
	}}
	reg := providers.NewRegistry(primary)
	coord, err := New(reg, testConfig([]string{"primary"}), "simulator", 1)
	require.NoError(t, err)

	_, err = coord.FetchHolders(context.Background(), "proto", 10, "", 4)
	require.Error(t, err)
	assert.Equal(t, errs.KindAuthMissing, errs.KindOf(err))
}

func TestBackoffDelayRespectsCeiling(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := backoffDelay(rng, 100*time.Millisecond, 150*time.Millisecond, 10)
	assert.LessOrEqual(t, d, 150*time.Millisecond*3/2+time.Millisecond)
}
