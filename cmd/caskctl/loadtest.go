package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	vegeta "github.com/tsenart/vegeta/v12/lib"

	"caskhouse/contracts/tracking"
	"caskhouse/internal/frontend/api"
)

var (
	loadRate     int
	loadDuration time.Duration
	loadVisitors int
	loadTarget   string
	loadTimeout  time.Duration
)

// loadtestCmd attacks the tracking endpoints with vegeta.
var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Load test the tracking endpoints",
	Long: `Send a constant rate of tracking requests and print latency and status
statistics.

--target selects the endpoint: event, visitor or capture. Requests rotate
through a fixed pool of synthetic visitor IDs.`,
	RunE: runLoadtest,
}

func init() {
	f := loadtestCmd.Flags()
	f.IntVar(&loadRate, "rate", 50, "Requests per second")
	f.DurationVar(&loadDuration, "duration", 10*time.Second, "Attack duration")
	f.IntVar(&loadVisitors, "visitors", 100, "Number of synthetic visitors")
	f.StringVar(&loadTarget, "target", "event", "Endpoint to attack: event, visitor or capture")
	f.DurationVar(&loadTimeout, "timeout", 5*time.Second, "Per request timeout")
}

var loadCategories = []string{"cta", "navigation", "form", "engagement"}

func runLoadtest(cmd *cobra.Command, _ []string) error {
	if loadRate <= 0 || loadDuration <= 0 || loadVisitors <= 0 {
		return fmt.Errorf("--rate, --duration and --visitors must be positive")
	}
	targeter, err := newTargeter(strings.TrimRight(baseURL, "/"), loadTarget, loadVisitors)
	if err != nil {
		return err
	}

	attacker := vegeta.NewAttacker(vegeta.Timeout(loadTimeout))
	rate := vegeta.Rate{Freq: loadRate, Per: time.Second}

	log.Info("starting load test",
		"target", loadTarget,
		"rate", loadRate,
		"duration", loadDuration,
	)

	var metrics vegeta.Metrics
	results := attacker.Attack(targeter, rate, loadDuration, "caskctl-"+loadTarget)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	done := ctx.Done()
loop:
	for {
		select {
		case res, ok := <-results:
			if !ok {
				break loop
			}
			metrics.Add(res)
		case <-done:
			attacker.Stop()
			done = nil
		}
	}
	metrics.Close()

	if err := vegeta.NewTextReporter(&metrics).Report(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if metrics.Success < 1 {
		log.Warn("load test saw failures", "success_ratio", metrics.Success, "errors", len(metrics.Errors))
	}
	return nil
}

// newTargeter builds a vegeta targeter cycling through synthetic visitors.
func newTargeter(base, target string, visitors int) (vegeta.Targeter, error) {
	ids := make([]string, visitors)
	for i := range ids {
		ids[i] = "v_load_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}

	var path string
	var body func(visitorID string, n uint64) any
	switch target {
	case "event":
		path = api.PathEvent
		body = func(visitorID string, n uint64) any {
			return tracking.EventRequest{
				VisitorID: visitorID,
				Category:  loadCategories[n%uint64(len(loadCategories))],
				Action:    "click",
				Label:     fmt.Sprintf("load-%d", n),
				Timestamp: time.Now().UTC(),
			}
		}
	case "visitor":
		path = api.PathVisitor
		body = func(visitorID string, n uint64) any {
			now := time.Now().UTC()
			return tracking.VisitorSnapshot{
				VisitorID:       visitorID,
				FirstVisit:      now,
				SessionStart:    now,
				PageViews:       int(n%10) + 1,
				EngagementScore: rand.IntN(101),
				LastActivity:    now,
				Trigger:         tracking.TriggerHeartbeat,
			}
		}
	case "capture":
		path = api.PathCaptureField
		body = func(visitorID string, n uint64) any {
			return tracking.CaptureFieldRequest{
				VisitorID:  visitorID,
				FieldName:  "message",
				FieldValue: fmt.Sprintf("Interested in cask lot %d", n),
				FormType:   "cask_enquiry",
				Timestamp:  time.Now().UTC(),
			}
		}
	default:
		return nil, fmt.Errorf("unknown --target %q", target)
	}

	header := http.Header{"Content-Type": []string{"application/json"}}
	var seq atomic.Uint64
	return func(t *vegeta.Target) error {
		if t == nil {
			return vegeta.ErrNilTarget
		}
		n := seq.Add(1)
		raw, err := json.Marshal(body(ids[n%uint64(len(ids))], n))
		if err != nil {
			return err
		}
		t.Method = http.MethodPost
		t.URL = base + path
		t.Body = raw
		t.Header = header.Clone()
		return nil
	}, nil
}
