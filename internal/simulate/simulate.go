// Package simulate drives synthetic gateway traffic against a running
// control plane: random access requests are evaluated through the gateway
// API and, optionally, reported back as telemetry.
package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	api "github.com/Sentinel-Gate/accessgate/internal/adapter/inbound/http"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
)

type sampleUser struct {
	id   string
	role string
}

var (
	users = []sampleUser{
		{"user-1", "ENGINEER"},
		{"user-2", "ENGINEER"},
		{"user-3", "ORG_ADMIN"},
		{"user-4", "SEC_ANALYST"},
		{"user-5", "VIEWER"},
	}
	trustLevels = []policy.TrustLevel{policy.TrustHigh, policy.TrustMedium, policy.TrustLow, policy.TrustUntrusted}
	countries   = []string{"US", "GB", "CA", "DE", "FR", "CN", "RU", "JP"}
	resources   = []string{
		"ssh://internal.acme.com/server1",
		"ssh://internal.acme.com/server2",
		"https://app.acme.com/dashboard",
		"https://api.acme.com/v1/data",
		"rdp://internal.acme.com/desktop1",
		"vnc://internal.acme.com/monitor1",
	}
)

// Options configures an Agent.
type Options struct {
	// BaseURL is the control plane address, e.g. http://127.0.0.1:8080.
	BaseURL string
	// APIKey authenticates as a registered gateway.
	APIKey string
	// Interval is the base delay between requests; a random extra delay of
	// up to Jitter is added.
	Interval time.Duration
	Jitter   time.Duration
	// Count stops after this many requests. 0 runs until the context ends.
	Count int
	// Telemetry reports each decision through /api/gateway/telemetry.
	Telemetry bool
	// Seed makes the generated traffic reproducible when non-zero.
	Seed uint64
	// Client overrides the HTTP client.
	Client *http.Client
}

// Stats counts the outcomes of a run.
type Stats struct {
	Evaluated int
	Allowed   int
	Denied    int
	Recorded  int
	Errors    int
}

// Agent is a synthetic edge gateway.
type Agent struct {
	opts   Options
	rnd    *rand.Rand
	client *http.Client
	logger *slog.Logger
}

// New creates an Agent.
func New(opts Options, logger *slog.Logger) *Agent {
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Agent{
		opts:   opts,
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		client: client,
		logger: logger,
	}
}

// Generate returns a random access request.
func (a *Agent) Generate() api.AccessRequestBody {
	u := users[a.rnd.IntN(len(users))]
	return api.AccessRequestBody{
		UserID:           u.id,
		UserRole:         u.role,
		DeviceTrustLevel: trustLevels[a.rnd.IntN(len(trustLevels))],
		Country:          countries[a.rnd.IntN(len(countries))],
		Resource:         resources[a.rnd.IntN(len(resources))],
	}
}

// Step evaluates one generated request and reports it when telemetry is on.
func (a *Agent) Step(ctx context.Context, stats *Stats) error {
	req := a.Generate()

	var eval api.EvaluationResponse
	if err := a.post(ctx, "/api/gateway/evaluate", req, &eval); err != nil {
		stats.Errors++
		return fmt.Errorf("evaluate: %w", err)
	}
	stats.Evaluated++
	if eval.Decision == policy.EffectAllow {
		stats.Allowed++
	} else {
		stats.Denied++
	}
	a.logger.Info("access evaluated",
		"user_id", req.UserID,
		"role", req.UserRole,
		"resource", req.Resource,
		"country", req.Country,
		"device_trust", req.DeviceTrustLevel,
		"decision", eval.Decision,
		"reason", eval.Reason,
	)

	if !a.opts.Telemetry {
		return nil
	}
	policyID := api.DefaultDenyPolicyID
	if len(eval.MatchedPolicyIDs) > 0 {
		policyID = eval.MatchedPolicyIDs[0]
	}
	body := api.RecordDecisionBody{
		UserID:           req.UserID,
		PolicyID:         policyID,
		Decision:         eval.Decision,
		Resource:         req.Resource,
		Country:          req.Country,
		DeviceTrustLevel: string(req.DeviceTrustLevel),
	}
	if err := a.post(ctx, "/api/gateway/telemetry", body, nil); err != nil {
		stats.Errors++
		return fmt.Errorf("telemetry: %w", err)
	}
	stats.Recorded++
	return nil
}

// Run generates traffic until Count requests were sent or ctx ends.
// Request failures are logged and counted, not returned.
func (a *Agent) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	for i := 0; a.opts.Count == 0 || i < a.opts.Count; i++ {
		if i > 0 {
			if err := a.sleep(ctx); err != nil {
				return stats, nil
			}
		}
		if err := a.Step(ctx, &stats); err != nil {
			if ctx.Err() != nil {
				return stats, nil
			}
			a.logger.Warn("simulated request failed", "error", err)
		}
	}
	return stats, nil
}

func (a *Agent) sleep(ctx context.Context) error {
	d := a.opts.Interval
	if a.opts.Jitter > 0 {
		d += time.Duration(a.rnd.Int64N(int64(a.opts.Jitter)))
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *Agent) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opts.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.APIKeyHeader, a.opts.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e api.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
			return fmt.Errorf("%s: %s (%s)", resp.Status, e.Error.Message, e.Error.Code)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
