package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"govanalytics/config"
	"govanalytics/errs"
	"govanalytics/model"
	"govanalytics/observability/metrics"
	"govanalytics/providers"
)

// Kind names a fetchable call kind, matching the config fallback chain keys.
type Kind string

const (
	KindHolders     Kind = "holders"
	KindProposals   Kind = "proposals"
	KindVotes       Kind = "votes"
	KindDelegations Kind = "delegations"
)

// AuditEvent tags one coordinator decision, grounded on the teacher's
// native/governance.AuditRecord lifecycle log.
type AuditEvent string

const (
	AuditEventSourceSucceeded AuditEvent = "source_succeeded"
	AuditEventSourceSkipped   AuditEvent = "source_skipped"
	AuditEventFallback        AuditEvent = "fallback"
	AuditEventDegraded        AuditEvent = "degraded"
	AuditEventCacheHit        AuditEvent = "cache_hit"
)

// AuditRecord captures an immutable coordinator decision for post-hoc
// debugging of why a snapshot took the provenance it did.
type AuditRecord struct {
	Sequence  uint64
	Timestamp time.Time
	Event     AuditEvent
	Kind      Kind
	Protocol  string
	Source    string
	Detail    string
}

// Result pairs a fetched payload with the provenance tier it was served at.
type Result[T any] struct {
	Value      T
	Provenance model.Provenance
	Source     string
}

type sourceGate struct {
	limiter *rate.Limiter
	queue   chan struct{}
}

// Coordinator implements the fallback-chain walk described in spec.md §4.2:
// try sources in priority order, retry within a source with backoff, cap
// concurrency per source, cache successful responses, and tag the result
// with the weakest provenance tier actually used.
type Coordinator struct {
	registry *providers.Registry
	chains   config.FallbackChainConfig
	retry    config.RetryConfig
	cache    *ResponseCache
	cacheTTL config.CacheConfig
	metrics  *metrics.Fetch
	simSrc   string

	mu     sync.Mutex
	rng    *rand.Rand
	gates  map[string]*sourceGate
	global chan struct{}

	auditMu sync.Mutex
	audit   []AuditRecord
	seq     uint64
}

// New builds a Coordinator. simulatorSourceID names the registered adapter
// treated as the terminal simulator fallback (provenance simulated).
func New(registry *providers.Registry, cfg config.Config, simulatorSourceID string, seed int64) (*Coordinator, error) {
	cache, err := NewResponseCache(cfg.Cache.MaxEntries)
	if err != nil {
		return nil, err
	}
	globalCap := cfg.Concurrency.Global
	if globalCap <= 0 {
		globalCap = 1
	}
	return &Coordinator{
		registry: registry,
		chains:   cfg.FallbackChain,
		retry:    cfg.Retry,
		cache:    cache,
		cacheTTL: cfg.Cache,
		metrics:  metrics.FetchMetrics(),
		simSrc:   simulatorSourceID,
		rng:      rand.New(rand.NewSource(seed)),
		gates:    make(map[string]*sourceGate),
		global:   make(chan struct{}, globalCap),
	}, nil
}

func (c *Coordinator) ttlFor(kind Kind) time.Duration {
	switch kind {
	case KindHolders:
		return c.cacheTTL.HoldersTTL()
	case KindProposals:
		return c.cacheTTL.ProposalsTTL()
	case KindVotes:
		return c.cacheTTL.VotesTTL()
	default:
		return c.cacheTTL.ProposalsTTL()
	}
}

func (c *Coordinator) chainFor(kind Kind) []string {
	switch kind {
	case KindHolders:
		return c.chains.Holders
	case KindProposals:
		return c.chains.Proposals
	case KindVotes:
		return c.chains.Votes
	case KindDelegations:
		return c.chains.Delegations
	default:
		return nil
	}
}

func (c *Coordinator) gateFor(source string, perSource int) *sourceGate {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.gates[source]
	if ok {
		return g
	}
	if perSource <= 0 {
		perSource = 1
	}
	g = &sourceGate{
		limiter: rate.NewLimiter(rate.Limit(perSource), perSource),
		queue:   make(chan struct{}, perSource*2),
	}
	c.gates[source] = g
	return g
}

func (c *Coordinator) jitter() *rand.Rand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return rand.New(rand.NewSource(c.rng.Int63()))
}

func (c *Coordinator) recordAudit(event AuditEvent, kind Kind, protocol, source, detail string) {
	c.auditMu.Lock()
	defer c.auditMu.Unlock()
	c.seq++
	c.audit = append(c.audit, AuditRecord{
		Sequence:  c.seq,
		Timestamp: time.Now().UTC(),
		Event:     event,
		Kind:      kind,
		Protocol:  protocol,
		Source:    source,
		Detail:    detail,
	})
}

// AuditLog returns a snapshot of every decision recorded so far.
func (c *Coordinator) AuditLog() []AuditRecord {
	c.auditMu.Lock()
	defer c.auditMu.Unlock()
	out := make([]AuditRecord, len(c.audit))
	copy(out, c.audit)
	return out
}

// acquire takes one of the source's perSource slots, waits on the per-source
// rate limiter, then blocks for a global concurrency slot. The per-source
// slot is not waited for: when all perSource slots are taken, acquire fails
// at once with RateLimited.
func (c *Coordinator) acquire(ctx context.Context, source string, perSource int) (func(), error) {
	gate := c.gateFor(source, perSource)
	select {
	case gate.queue <- struct{}{}:
	default:
		return nil, errs.New(errs.KindRateLimited, "acquire", source, fmt.Errorf("per-source queue full"))
	}
	if err := gate.limiter.Wait(ctx); err != nil {
		<-gate.queue
		if ctx.Err() != nil {
			return nil, errs.New(errs.KindCancelled, "acquire", source, ctx.Err())
		}
		return nil, errs.New(errs.KindRateLimited, "acquire", source, err)
	}
	select {
	case c.global <- struct{}{}:
	case <-ctx.Done():
		<-gate.queue
		return nil, errs.New(errs.KindCancelled, "acquire", source, ctx.Err())
	}
	release := func() {
		<-c.global
		<-gate.queue
	}
	return release, nil
}

// runWithRetry calls fn against source, retrying transient/rate-limited
// failures with backoff up to MaxAttempts (spec.md §4.2 steps 1-2).
func (c *Coordinator) runWithRetry(ctx context.Context, kind Kind, source string, fn func(ctx context.Context) (any, error)) (any, error) {
	var lastErr error
	rng := c.jitter()
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		start := time.Now()
		value, err := fn(ctx)
		c.metrics.RecordCall(source, string(kind), time.Since(start).Seconds())
		if err == nil {
			return value, nil
		}
		lastErr = err
		kindOf := errs.KindOf(err)
		if !kindOf.Retryable() {
			return nil, err
		}
		if attempt == c.retry.MaxAttempts-1 {
			break
		}
		c.metrics.RecordRetry(source, string(kind))
		delay := backoffDelay(rng, c.retry.Base(), c.retry.Ceiling(), attempt)
		if kindOf == errs.KindRateLimited {
			var typed *errs.Error
			if ok := errsAsRetryDelay(err, &typed); ok && typed.RetryAfterMS > 0 {
				delay = time.Duration(typed.RetryAfterMS) * time.Millisecond
			}
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, errs.New(errs.KindCancelled, "runWithRetry", source, ctx.Err())
		}
	}
	c.metrics.RecordFailure(source, string(kind), errs.KindOf(lastErr).String())
	return nil, lastErr
}

func errsAsRetryDelay(err error, target **errs.Error) bool {
	e, ok := err.(*errs.Error)
	if !ok {
		return false
	}
	*target = e
	return true
}

// walk runs the fallback chain for kind against protocol, returning the
// payload from the first source that succeeds (live), the cache (cached),
// or the terminal simulator (simulated).
func walk[T any](ctx context.Context, c *Coordinator, kind Kind, protocol string, cacheKey CacheKey, perSource int, call func(ctx context.Context, adapter providers.ProviderAdapter) (T, error)) (Result[T], error) {
	var zero Result[T]

	if cached, ok := c.cache.Get(cacheKey); ok {
		c.metrics.RecordCacheHit(string(kind))
		c.recordAudit(AuditEventCacheHit, kind, protocol, cacheKey.Source, "served from response cache")
		return Result[T]{Value: cached.(T), Provenance: model.ProvenanceCached, Source: cacheKey.Source}, nil
	}
	c.metrics.RecordCacheMiss(string(kind))

	chain := c.chainFor(kind)
	var lastErr error
	for i, sourceID := range chain {
		adapter := c.registry.Get(sourceID)
		if adapter == nil {
			continue
		}
		release, err := c.acquire(ctx, sourceID, perSource)
		if err != nil {
			lastErr = err
			continue
		}
		raw, err := c.runWithRetry(ctx, kind, sourceID, func(ctx context.Context) (any, error) {
			return call(ctx, adapter)
		})
		release()
		if err != nil {
			kindOf := errs.KindOf(err)
			c.recordAudit(AuditEventSourceSkipped, kind, protocol, sourceID, kindOf.String())
			lastErr = err
			if i < len(chain)-1 {
				c.metrics.RecordFallback(string(kind), sourceID, chain[i+1])
				c.recordAudit(AuditEventFallback, kind, protocol, sourceID, "advancing to "+chain[i+1])
			}
			continue
		}
		value := raw.(T)
		provenance := model.ProvenanceLive
		switch {
		case sourceID == c.simSrc:
			provenance = model.ProvenanceSimulated
			c.recordAudit(AuditEventDegraded, kind, protocol, sourceID, "all real sources exhausted")
		case adapter.FreeTier():
			provenance = model.ProvenanceFallbackFree
			c.recordAudit(AuditEventSourceSucceeded, kind, protocol, sourceID, "served on free tier")
		default:
			c.recordAudit(AuditEventSourceSucceeded, kind, protocol, sourceID, "")
		}
		ttl := c.ttlFor(kind)
		if provenance != model.ProvenanceSimulated {
			c.cache.Put(cacheKey, value, ttl)
		}
		return Result[T]{Value: value, Provenance: provenance, Source: sourceID}, nil
	}
	if lastErr == nil {
		lastErr = errs.New(errs.KindInternal, "walk", "", fmt.Errorf("empty fallback chain for %s", kind))
	}
	return zero, lastErr
}

// FetchHolders walks the holders fallback chain.
func (c *Coordinator) FetchHolders(ctx context.Context, protocol string, limit int, cursor string, perSource int) (Result[providers.HolderPage], error) {
	key := CacheKey{Source: "holders", Kind: string(KindHolders), Args: fmt.Sprintf("%s|%d|%s", protocol, limit, cursor)}
	return walk(ctx, c, KindHolders, protocol, key, perSource, func(ctx context.Context, a providers.ProviderAdapter) (providers.HolderPage, error) {
		return a.FetchHolders(ctx, protocol, limit, cursor)
	})
}

// FetchProposals walks the proposals fallback chain.
func (c *Coordinator) FetchProposals(ctx context.Context, protocol string, since, until time.Time, perSource int) (Result[[]providers.ProposalRecord], error) {
	key := CacheKey{Source: "proposals", Kind: string(KindProposals), Args: fmt.Sprintf("%s|%d|%d", protocol, since.Unix(), until.Unix())}
	return walk(ctx, c, KindProposals, protocol, key, perSource, func(ctx context.Context, a providers.ProviderAdapter) ([]providers.ProposalRecord, error) {
		return a.FetchProposals(ctx, protocol, since, until)
	})
}

// FetchVotes walks the votes fallback chain.
func (c *Coordinator) FetchVotes(ctx context.Context, protocol, proposalID string, perSource int) (Result[[]providers.VoteRecord], error) {
	key := CacheKey{Source: "votes", Kind: string(KindVotes), Args: protocol + "|" + proposalID}
	return walk(ctx, c, KindVotes, protocol, key, perSource, func(ctx context.Context, a providers.ProviderAdapter) ([]providers.VoteRecord, error) {
		return a.FetchVotes(ctx, protocol, proposalID)
	})
}

// FetchDelegations walks the delegations fallback chain.
func (c *Coordinator) FetchDelegations(ctx context.Context, protocol string, since, until time.Time, perSource int) (Result[[]providers.DelegationRecord], error) {
	key := CacheKey{Source: "delegations", Kind: string(KindDelegations), Args: fmt.Sprintf("%s|%d|%d", protocol, since.Unix(), until.Unix())}
	return walk(ctx, c, KindDelegations, protocol, key, perSource, func(ctx context.Context, a providers.ProviderAdapter) ([]providers.DelegationRecord, error) {
		return a.FetchDelegations(ctx, protocol, since, until)
	})
}
