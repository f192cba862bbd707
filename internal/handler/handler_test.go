package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"NewsPoster/internal/approval"
	"NewsPoster/internal/domain"
	"NewsPoster/internal/infrastructure/slackbot"
	"NewsPoster/internal/infrastructure/storage/memory"
)

const (
	testSecret = "8f742231b10e8888abcd99yyyzzz85a5"
	draftText  = "Startup X has raised $50M in a Series B round led by Example Ventures."
)

type fakeEditor struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeEditor) OpenEditor(_ context.Context, triggerID, draftID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, triggerID+"|"+draftID+"|"+text)
	return nil
}

type fixture struct {
	server    *httptest.Server
	approvals *memory.ApprovalStore
	approved  *memory.Queue
	editor    *fakeEditor
}

func newFixture(t *testing.T, draftIDs ...string) fixture {
	t.Helper()
	ctx := context.Background()

	drafts := memory.NewDraftStore()
	approvals := memory.NewApprovalStore()
	approved := memory.NewQueue(10)
	gateway := approval.NewGateway(approval.GatewayDeps{
		Drafts:   drafts,
		Store:    approvals,
		Approved: approved,
	})

	for _, id := range draftIDs {
		if err := drafts.SaveDraft(ctx, domain.Draft{ID: id, SessionID: "s1", Text: draftText, AttemptNumber: 1, Status: domain.StatusGenerated}); err != nil {
			t.Fatalf("save draft: %v", err)
		}
		if err := drafts.AppendCritique(ctx, domain.CritiqueResult{DraftID: id, Verdict: domain.VerdictPass}); err != nil {
			t.Fatalf("append critique: %v", err)
		}
		if err := drafts.UpdateStatus(ctx, id, domain.StatusGenerated, domain.StatusCritiqued); err != nil {
			t.Fatalf("update status: %v", err)
		}
		if err := drafts.MarkPendingApproval(ctx, id); err != nil {
			t.Fatalf("mark pending: %v", err)
		}
		if _, err := gateway.Submit(ctx, id); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	editor := &fakeEditor{}
	router := NewRouter(RouterDeps{
		Reviewer:      gateway,
		Editor:        editor,
		SigningSecret: testSecret,
		Backlog: func(context.Context) (int64, error) {
			return int64(approved.Len()), nil
		},
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return fixture{server: server, approvals: approvals, approved: approved, editor: editor}
}

func signedRequest(t *testing.T, target, contentType, body string) *http.Request {
	t.Helper()

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testSecret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)

	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func postAction(t *testing.T, f fixture, payload string) (int, map[string]any) {
	t.Helper()

	form := url.Values{"payload": {payload}}.Encode()
	req := signedRequest(t, f.server.URL+"/slack/actions", "application/x-www-form-urlencoded", form)
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode response %q: %v", raw, err)
	}
	return resp.StatusCode, body
}

func buttonPayload(actionID, draftID string) string {
	return fmt.Sprintf(`{"type":"block_actions","trigger_id":"trig-1","user":{"id":"U1","name":"alice"},"actions":[{"type":"button","block_id":%q,"action_id":%q,"value":%q}]}`,
		slackbot.ActionsBlockID, actionID, draftID)
}

func editPayload(draftID, text string) string {
	return fmt.Sprintf(`{"type":"view_submission","user":{"id":"U2","name":"bob"},"view":{"callback_id":%q,"private_metadata":%q,"state":{"values":{%q:{%q:{"type":"plain_text_input","value":%q}}}}}}`,
		slackbot.EditCallbackID, draftID, slackbot.EditBlockID, slackbot.EditInputID, text)
}

func TestSlackEventsURLVerification(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := signedRequest(t, f.server.URL+"/slack/events", "application/json", `{"type":"url_verification","challenge":"abc123"}`)
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body["challenge"] != "abc123" {
		t.Fatalf("unexpected response %d %v", resp.StatusCode, body)
	}
}

func TestSlackRejectsBadSignature(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "d1")
	req := signedRequest(t, f.server.URL+"/slack/actions", "application/x-www-form-urlencoded", "payload=%7B%7D")
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	stale := signedRequest(t, f.server.URL+"/slack/actions", "application/x-www-form-urlencoded", "payload=%7B%7D")
	stale.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10))
	resp, err = f.server.Client().Do(stale)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale timestamp, got %d", resp.StatusCode)
	}
}

func TestApproveThenLateReject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "d1")

	status, body := postAction(t, f, buttonPayload(slackbot.ActionApprove, "d1"))
	if status != http.StatusOK {
		t.Fatalf("approve returned %d: %v", status, body)
	}
	decision, err := f.approvals.Decision(context.Background(), "d1")
	if err != nil || decision.Decision != domain.DecisionApprove {
		t.Fatalf("expected stored approval, got %+v, %v", decision, err)
	}
	if decision.Actor != "alice (U1)" {
		t.Fatalf("unexpected actor: %s", decision.Actor)
	}
	if f.approved.Len() != 1 {
		t.Fatalf("expected approved draft to be queued")
	}

	status, body = postAction(t, f, buttonPayload(slackbot.ActionReject, "d1"))
	if status != http.StatusOK || body["text"] != alreadyResolvedMessage {
		t.Fatalf("expected informational 200, got %d %v", status, body)
	}
	decision, _ = f.approvals.Decision(context.Background(), "d1")
	if decision.Decision != domain.DecisionApprove {
		t.Fatalf("late reject overwrote decision: %+v", decision)
	}
}

func TestUnknownDraftIsNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	status, _ := postAction(t, f, buttonPayload(slackbot.ActionApprove, "missing"))
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestEditButtonOpensEditor(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "d1")
	status, _ := postAction(t, f, buttonPayload(slackbot.ActionEdit, "d1"))
	if status != http.StatusOK {
		t.Fatalf("edit returned %d", status)
	}
	if len(f.editor.calls) != 1 || f.editor.calls[0] != "trig-1|d1|"+draftText {
		t.Fatalf("unexpected editor calls: %v", f.editor.calls)
	}
}

func TestEditSubmissionSavesAndApproves(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "d1")
	edited := "Startup X closed a $50M Series B led by Example Ventures."

	status, body := postAction(t, f, editPayload("d1", edited))
	if status != http.StatusOK || body["response_action"] != "clear" {
		t.Fatalf("unexpected response %d %v", status, body)
	}

	decision, err := f.approvals.Decision(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Decision: %v", err)
	}
	if decision.Decision != domain.DecisionApprove || decision.EditedText != edited {
		t.Fatalf("expected approval of edited text, got %+v", decision)
	}
	if edits := f.approvals.Edits("d1"); len(edits) != 1 || edits[0].Actor != "bob (U2)" {
		t.Fatalf("unexpected edit history: %+v", edits)
	}
}

func TestEditSubmissionRequiresText(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "d1")
	status, body := postAction(t, f, editPayload("d1", "   "))
	if status != http.StatusOK || body["response_action"] != "errors" {
		t.Fatalf("expected modal error, got %d %v", status, body)
	}
	if _, err := f.approvals.Decision(context.Background(), "d1"); err == nil {
		t.Fatalf("empty edit must not resolve the draft")
	}
}

func TestHealthAndDrafts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "d1", "d2")

	resp, err := f.server.Client().Get(f.server.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health["pending_drafts"] != float64(2) || health["approved_drafts"] != float64(0) {
		t.Fatalf("unexpected health: %d %v", resp.StatusCode, health)
	}

	resp, err = f.server.Client().Get(f.server.URL + "/drafts")
	if err != nil {
		t.Fatalf("get drafts: %v", err)
	}
	defer resp.Body.Close()
	var list struct {
		Drafts []draftSummary `json:"drafts"`
		Count  int            `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode drafts: %v", err)
	}
	if list.Count != 2 || list.Drafts[0].WordCount != len(strings.Fields(draftText)) {
		t.Fatalf("unexpected drafts: %+v", list)
	}
}
