package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"NewsPoster/internal/approval"
	"NewsPoster/internal/domain"
	"NewsPoster/internal/infrastructure/slackbot"
)

const alreadyResolvedMessage = "This draft was already resolved."

type slackHandler struct {
	reviewer Reviewer
	editor   Editor
	logger   *slog.Logger
}

// Events answers the URL verification challenge; other events are acknowledged.
func (h *slackHandler) Events(w http.ResponseWriter, r *http.Request) {
	var event struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	if event.Type == "url_verification" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": event.Challenge})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Actions handles button clicks and the edit modal submission.
func (h *slackHandler) Actions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	raw := r.PostForm.Get("payload")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing payload")
		return
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(raw), &cb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		h.blockAction(w, r, cb)
	case slack.InteractionTypeViewSubmission:
		h.editSubmission(w, r, cb)
	default:
		h.logger.Info("ignoring slack interaction", "type", cb.Type)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func (h *slackHandler) blockAction(w http.ResponseWriter, r *http.Request, cb slack.InteractionCallback) {
	if len(cb.ActionCallback.BlockActions) == 0 {
		writeError(w, http.StatusBadRequest, "no action in payload")
		return
	}
	action := cb.ActionCallback.BlockActions[0]
	draftID := strings.TrimSpace(action.Value)
	actor := actorOf(cb.User)
	if draftID == "" {
		writeError(w, http.StatusBadRequest, "action carries no draft id")
		return
	}
	h.logger.Info("slack action", "action", action.ActionID, "draft", draftID, "actor", actor)

	switch action.ActionID {
	case slackbot.ActionApprove:
		h.resolve(w, r, draftID, approval.Resolution{Decision: domain.DecisionApprove, Actor: actor})
	case slackbot.ActionReject:
		h.resolve(w, r, draftID, approval.Resolution{Decision: domain.DecisionReject, Actor: actor})
	case slackbot.ActionEdit:
		h.openEditor(w, r, cb.TriggerID, draftID)
	default:
		h.logger.Warn("unknown slack action", "action", action.ActionID)
		writeJSON(w, http.StatusOK, map[string]string{"text": "Unknown action."})
	}
}

func (h *slackHandler) resolve(w http.ResponseWriter, r *http.Request, draftID string, res approval.Resolution) {
	decision, err := h.reviewer.Resolve(r.Context(), draftID, res)
	if err != nil {
		h.writeResolveError(w, draftID, err)
		return
	}
	verb := "approved"
	if decision.Decision == domain.DecisionReject {
		verb = "rejected"
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": "Draft " + verb + " by " + decision.Actor + "."})
}

func (h *slackHandler) openEditor(w http.ResponseWriter, r *http.Request, triggerID, draftID string) {
	if h.editor == nil {
		writeJSON(w, http.StatusOK, map[string]string{"text": "Editing is not available."})
		return
	}
	entry, err := h.reviewer.Pending(r.Context(), draftID)
	if err != nil {
		h.writeResolveError(w, draftID, err)
		return
	}
	if entry.Status != domain.StatusPendingApproval {
		writeJSON(w, http.StatusOK, map[string]string{"text": alreadyResolvedMessage})
		return
	}
	if err := h.editor.OpenEditor(r.Context(), triggerID, draftID, entry.Text); err != nil {
		h.logger.Error("open editor failed", "draft", draftID, "error", err)
		writeError(w, http.StatusInternalServerError, "cannot open editor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// editSubmission saves the edited text and approves it as the same actor.
func (h *slackHandler) editSubmission(w http.ResponseWriter, r *http.Request, cb slack.InteractionCallback) {
	if cb.View.CallbackID != slackbot.EditCallbackID {
		writeJSON(w, http.StatusOK, map[string]string{"response_action": "clear"})
		return
	}

	draftID := cb.View.PrivateMetadata
	var text string
	if cb.View.State != nil {
		text = strings.TrimSpace(cb.View.State.Values[slackbot.EditBlockID][slackbot.EditInputID].Value)
	}
	if draftID == "" || text == "" {
		writeModalError(w, "Text cannot be empty")
		return
	}
	actor := actorOf(cb.User)

	if _, err := h.reviewer.Resolve(r.Context(), draftID, approval.Resolution{Decision: domain.DecisionEdit, Actor: actor, EditedText: text}); err != nil {
		h.modalResolveError(w, draftID, err)
		return
	}
	if _, err := h.reviewer.Resolve(r.Context(), draftID, approval.Resolution{Decision: domain.DecisionApprove, Actor: actor}); err != nil {
		h.modalResolveError(w, draftID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response_action": "clear"})
}

func (h *slackHandler) writeResolveError(w http.ResponseWriter, draftID string, err error) {
	status := statusFor(err)
	if errors.Is(err, domain.ErrAlreadyResolved) {
		writeJSON(w, status, map[string]string{"text": alreadyResolvedMessage})
		return
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("resolve failed", "draft", draftID, "error", err)
	}
	writeError(w, status, err.Error())
}

func (h *slackHandler) modalResolveError(w http.ResponseWriter, draftID string, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyResolved):
		writeModalError(w, alreadyResolvedMessage)
	case errors.Is(err, domain.ErrInvalidInput):
		writeModalError(w, "Text cannot be empty")
	default:
		h.writeResolveError(w, draftID, err)
	}
}

func writeModalError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"response_action": "errors",
		"errors":          map[string]string{slackbot.EditBlockID: message},
	})
}

func actorOf(u slack.User) string {
	switch {
	case u.Name != "" && u.ID != "":
		return u.Name + " (" + u.ID + ")"
	case u.Name != "":
		return u.Name
	default:
		return u.ID
	}
}
