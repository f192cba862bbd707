// Package slackbot delivers drafts to a Slack channel for review and
// renders the edit modal.
package slackbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"NewsPoster/internal/config"
	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

// Interaction identifiers shared with the webhook handler.
const (
	ActionApprove  = "approve_post"
	ActionReject   = "reject_post"
	ActionEdit     = "edit_post"
	ActionsBlockID = "approval_actions"

	EditCallbackID = "edit_draft_modal"
	EditBlockID    = "draft_text_block"
	EditInputID    = "draft_text_input"
)

// maxSectionRunes keeps the draft below the 3000 character section limit.
const maxSectionRunes = 2800

type api interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
}

// Channel posts review requests and updates them once resolved.
type Channel struct {
	api       api
	channelID string
}

var _ ports.ReviewChannel = (*Channel)(nil)

// NewChannel builds a Slack client for the bot token.
func NewChannel(cfg config.SlackConfig, opts ...slack.Option) (*Channel, error) {
	if cfg.BotToken == "" || cfg.Channel == "" {
		return nil, fmt.Errorf("slack bot token and channel are required")
	}
	return &Channel{
		api:       slack.New(cfg.BotToken, opts...),
		channelID: cfg.Channel,
	}, nil
}

// Notify posts the review message and returns "<channel>:<ts>".
func (c *Channel) Notify(ctx context.Context, review domain.Review) (string, error) {
	channelID, ts, err := c.api.PostMessageContext(ctx, c.channelID,
		slack.MsgOptionText(fallbackText(review), false),
		slack.MsgOptionBlocks(ReviewBlocks(review)...),
	)
	if err != nil {
		return "", fmt.Errorf("post review message: %w", err)
	}
	return channelID + ":" + ts, nil
}

// Resolved replaces the buttons with the outcome.
func (c *Channel) Resolved(ctx context.Context, ref string, decision domain.ApprovalDecision) error {
	channelID, ts, ok := strings.Cut(ref, ":")
	if !ok || channelID == "" || ts == "" {
		return fmt.Errorf("malformed message ref %q", ref)
	}

	text := outcomeText(decision)
	_, _, _, err := c.api.UpdateMessageContext(ctx, channelID, ts,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil,
		)),
	)
	if err != nil {
		return fmt.Errorf("update review message: %w", err)
	}
	return nil
}

// OpenEditor shows the edit modal prefilled with the current text.
func (c *Channel) OpenEditor(ctx context.Context, triggerID, draftID, text string) error {
	if triggerID == "" {
		return fmt.Errorf("no trigger id for edit of %s", draftID)
	}
	if _, err := c.api.OpenViewContext(ctx, triggerID, EditModal(draftID, text)); err != nil {
		return fmt.Errorf("open edit modal: %w", err)
	}
	return nil
}

// ReviewBlocks renders a draft with approve, reject and edit buttons.
// Every button carries the draft id as its value.
func ReviewBlocks(review domain.Review) []slack.Block {
	header := "New draft ready for review"
	if review.Revision > 0 {
		header = fmt.Sprintf("Draft edited by %s (revision %d)", review.EditedBy, review.Revision)
	}

	meta := fmt.Sprintf("*Words:* %d | *Attempt:* %d | *Sources:* %d | *Session:* %s",
		len(strings.Fields(review.Text)), review.Attempt, review.SourceCount, review.SessionID)

	approve := slack.NewButtonBlockElement(ActionApprove, review.DraftID,
		slack.NewTextBlockObject(slack.PlainTextType, "Approve & Post", false, false)).
		WithStyle(slack.StylePrimary).
		WithConfirm(slack.NewConfirmationBlockObject(
			slack.NewTextBlockObject(slack.PlainTextType, "Confirm Approval", false, false),
			slack.NewTextBlockObject(slack.PlainTextType, "This will post the draft to every configured target. Are you sure?", false, false),
			slack.NewTextBlockObject(slack.PlainTextType, "Yes, Post It", false, false),
			slack.NewTextBlockObject(slack.PlainTextType, "Wait, Let Me Review", false, false),
		))
	reject := slack.NewButtonBlockElement(ActionReject, review.DraftID,
		slack.NewTextBlockObject(slack.PlainTextType, "Reject", false, false)).
		WithStyle(slack.StyleDanger)
	edit := slack.NewButtonBlockElement(ActionEdit, review.DraftID,
		slack.NewTextBlockObject(slack.PlainTextType, "Edit", false, false))

	return []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, header, false, false)),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "*Draft Post:*\n\n"+truncate(review.Text, maxSectionRunes), false, false), nil, nil),
		slack.NewDividerBlock(),
		slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, meta, false, false)),
		slack.NewActionBlock(ActionsBlockID, approve, reject, edit),
	}
}

// EditModal is the inline editor; submitting it saves the edit and approves.
func EditModal(draftID, text string) slack.ModalViewRequest {
	input := slack.NewPlainTextInputBlockElement(nil, EditInputID)
	input.Multiline = true
	input.InitialValue = text

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      EditCallbackID,
		PrivateMetadata: draftID,
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "Edit Draft", false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Save & Approve", false, false),
		Close:           slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(EditBlockID,
				slack.NewTextBlockObject(slack.PlainTextType, "Edit the post text below:", false, false),
				nil, input),
			slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, "Draft `"+draftID+"`", false, false)),
		}},
	}
}

func fallbackText(review domain.Review) string {
	return fmt.Sprintf("New draft ready for review (%d words)", len(strings.Fields(review.Text)))
}

func outcomeText(d domain.ApprovalDecision) string {
	switch d.Decision {
	case domain.DecisionApprove:
		if d.EditedText != "" {
			return fmt.Sprintf(":white_check_mark: Edited and approved by %s, queued for publishing", d.Actor)
		}
		return fmt.Sprintf(":white_check_mark: Approved by %s, queued for publishing", d.Actor)
	case domain.DecisionReject:
		return fmt.Sprintf(":x: Rejected by %s", d.Actor)
	default:
		return fmt.Sprintf("Resolved by %s", d.Actor)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
