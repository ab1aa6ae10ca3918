// Package provider implements a resilient generation pool over multiple
// credentials across multiple text-generation providers. Selection walks
// providers in priority order with per-provider credential rotation;
// rate-limited credentials cool down, permanently failed ones are retired,
// and transient errors are retried a bounded number of times before the
// pool rotates on.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultCooldown is how long a rate-limited credential is ineligible.
const DefaultCooldown = 30 * time.Second

// DefaultRetryLimit is the per-credential retry bound for transient errors.
const DefaultRetryLimit = 2

// DefaultRetryWait is the initial wait between transient retries.
const DefaultRetryWait = 1 * time.Second

// Client is a concrete provider backend.
type Client interface {
	// Generate sends the prompt and returns the raw response text.
	// jsonMode requests structured JSON output where the backend supports it.
	Generate(ctx context.Context, key, model, prompt string, jsonMode bool) (string, error)
}

// group holds one provider's credentials and its rotation cursor.
type group struct {
	name     string
	priority int
	creds    []*credential
	cursor   int
}

// Pool selects credentials and drives generation with failover. The mutex
// serializes all credential state transitions, so concurrent callers never
// observe or select the same credential mid-transition.
type Pool struct {
	mu     sync.Mutex
	groups []*group

	clients    map[string]Client
	cooldown   time.Duration
	retryLimit int
	retryWait  time.Duration
	clock      func() time.Time
	logger     *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithClient overrides (or registers) the backend for a provider name.
func WithClient(name string, c Client) Option {
	return func(p *Pool) { p.clients[name] = c }
}

// WithCooldown sets the rate-limit cooldown duration.
func WithCooldown(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.cooldown = d
		}
	}
}

// WithRetryLimit sets the per-credential transient retry bound.
func WithRetryLimit(n int) Option {
	return func(p *Pool) {
		if n >= 0 {
			p.retryLimit = n
		}
	}
}

// WithRetryWait sets the initial wait between transient retries.
func WithRetryWait(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.retryWait = d
		}
	}
}

// WithClock injects a time source; tests use this to drive cooldown expiry.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.clock = now }
}

// WithLogger sets the pool's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// New builds a pool from the credential list. Credentials for providers
// without a registered client are dropped with a warning.
func New(creds []Credential, opts ...Option) *Pool {
	p := &Pool{
		clients: map[string]Client{
			"groq":   NewGroqClient(nil),
			"gemini": NewGeminiClient(nil),
		},
		cooldown:   DefaultCooldown,
		retryLimit: DefaultRetryLimit,
		retryWait:  DefaultRetryWait,
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	byProvider := make(map[string]*group)
	for _, c := range creds {
		if _, ok := p.clients[c.Provider]; !ok {
			p.logger.Warn("no client for provider, dropping credential",
				"credential", c.ID())
			continue
		}
		g, ok := byProvider[c.Provider]
		if !ok {
			g = &group{name: c.Provider, priority: c.Priority}
			byProvider[c.Provider] = g
			p.groups = append(p.groups, g)
		}
		if c.Priority < g.priority {
			g.priority = c.Priority
		}
		g.creds = append(g.creds, &credential{Credential: c})
	}

	sort.SliceStable(p.groups, func(i, j int) bool {
		if p.groups[i].priority != p.groups[j].priority {
			return p.groups[i].priority < p.groups[j].priority
		}
		return p.groups[i].name < p.groups[j].name
	})

	return p
}

// Size returns the number of usable credentials.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, g := range p.groups {
		n += len(g.creds)
	}
	return n
}

// Generate runs the prompt against the pool and parses the response with
// the given schema. It rotates through credentials on failure and returns
// ErrPoolExhausted once every credential has been tried or is ineligible.
func (p *Pool) Generate(ctx context.Context, prompt string, schema Schema) (any, error) {
	tried := make(map[*credential]struct{})
	var lastErr error

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cred := p.acquire(tried)
		if cred == nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w (last failure: %w)", ErrPoolExhausted, lastErr)
			}
			return nil, ErrPoolExhausted
		}
		tried[cred] = struct{}{}

		text, err := p.attempt(ctx, cred, prompt, schema.JSONMode())
		if err != nil {
			p.noteFailure(cred, err)
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		p.release(cred)

		payload, perr := schema.Parse(text)
		if perr != nil {
			// Schema failure is credential-scoped: rotate and try another.
			lastErr = fmt.Errorf("%w: %v", ErrSchema, perr)
			p.logger.Warn("schema parse failed, rotating",
				"credential", cred.ID(), "error", perr)
			continue
		}
		return payload, nil
	}
}

// attempt runs one credential, retrying transient errors on the same
// credential up to the retry limit with backoff.
func (p *Pool) attempt(ctx context.Context, cred *credential, prompt string, jsonMode bool) (string, error) {
	client := p.clients[cred.Provider]

	for attempt := 0; ; attempt++ {
		p.logger.Debug("generation attempt",
			"credential", cred.ID(), "model", cred.Model, "attempt", attempt)

		text, err := client.Generate(ctx, cred.Key, cred.Model, prompt, jsonMode)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrPermanent) {
			return "", err
		}
		if attempt >= p.retryLimit {
			return "", err
		}

		wait := p.retryWait * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

// acquire selects the next eligible credential: providers in priority
// order, credentials within a provider starting at the rotation cursor.
// The selected credential is marked in-flight so no concurrent request can
// double-select it. Returns nil when nothing is eligible.
func (p *Pool) acquire(tried map[*credential]struct{}) *credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	for _, g := range p.groups {
		n := len(g.creds)
		for i := 0; i < n; i++ {
			c := g.creds[(g.cursor+i)%n]
			if _, done := tried[c]; done {
				continue
			}
			if c.inFlight || c.stateAt(now) != StateAvailable {
				continue
			}
			c.inFlight = true
			g.cursor = (g.cursor + i + 1) % n
			return c
		}
	}
	return nil
}

// release returns a credential to the available state.
func (p *Pool) release(c *credential) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.inFlight = false
}

// noteFailure applies the state transition for a failed attempt:
// rate-limit starts a cooldown, permanent failure retires the credential,
// transient failure leaves it available for later requests.
func (p *Pool) noteFailure(c *credential, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c.inFlight = false
	switch {
	case errors.Is(err, ErrRateLimited):
		c.coolingUntil = p.clock().Add(p.cooldown)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > p.cooldown {
			c.coolingUntil = p.clock().Add(apiErr.RetryAfter)
		}
		p.logger.Info("rate limit hit, credential cooling",
			"credential", c.ID(), "until", c.coolingUntil)
	case errors.Is(err, ErrPermanent):
		c.exhausted = true
		p.logger.Warn("permanent failure, credential exhausted",
			"credential", c.ID(), "error", err)
	default:
		p.logger.Warn("provider error",
			"credential", c.ID(), "error", err)
	}
}
