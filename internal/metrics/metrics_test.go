package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"NewsPoster/internal/domain"
)

func TestCollectorExposesCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCritique(domain.VerdictFail, []domain.RuleID{domain.RuleNoFinancialAdvice})
	c.RecordSession(OutcomeCriticRejected)
	c.RecordPublish("twitter", true)
	c.RecordAlreadyResolved()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		`newsposter_rule_violations_total{rule="no_financial_advice"} 1`,
		`newsposter_sessions_total{outcome="critic_rejected"} 1`,
		`newsposter_publish_attempts_total{result="success",target="twitter"} 1`,
		`newsposter_approval_already_resolved_total 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in scrape output", want)
		}
	}
}

func TestPushSendsStageMetricsToGateway(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(raw)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSession(OutcomeCriticRejected)
	c.RecordPublish("linkedin", false)

	if err := Push(context.Background(), gateway.URL, "generate", reg); err != nil {
		t.Fatalf("Push: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut || path != "/metrics/job/generate" {
		t.Fatalf("unexpected push request %s %s", method, path)
	}
	if !strings.Contains(body, "newsposter_sessions_total") || !strings.Contains(body, "newsposter_publish_attempts_total") {
		t.Fatalf("pushed body is missing stage counters")
	}
}

func TestPushReportsGatewayErrors(t *testing.T) {
	t.Parallel()

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	reg := prometheus.NewRegistry()
	NewCollector(reg).RecordAttempt()
	if err := Push(context.Background(), gateway.URL, "publish", reg); err == nil {
		t.Fatalf("expected an error from a failing gateway")
	}
}
