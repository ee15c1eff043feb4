// Package sink renders dispatch job status into Telegram messages and
// delivers completion pings.
package sink

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"eurobot/internal/eurocore"
	"eurobot/internal/notifier"
	kit "eurobot/internal/transport"
	logx "eurobot/pkg/logx"
	"eurobot/pkg/tgui"
)

// Sink implements eurocore.NotificationSink on top of the Telegram adapter.
// Render edits the job's status message in place; Ping goes through the
// notifier pipeline so mentions share its rate limit and retries.
type Sink struct {
	adapter  kit.Adapter
	notifier *notifier.Service
	log      logx.Logger
}

func New(adapter kit.Adapter, n *notifier.Service, log logx.Logger) *Sink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{adapter: adapter, notifier: n, log: log}
}

// Render creates the status message on first call (zero RenderTarget) and
// edits it on subsequent calls. Rendering the same job state twice produces
// the same content.
func (s *Sink) Render(ctx context.Context, job eurocore.Job) (kit.MessageRef, error) {
	if job.RenderTarget.ChatID == 0 {
		// Initial render goes through RenderTo; a zero target here means the
		// submission path never set one.
		return kit.MessageRef{}, errors.New("job has no render target")
	}

	text := renderJob(job)
	err := s.adapter.EditText(ctx, job.RenderTarget, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return job.RenderTarget, err
}

// RenderTo creates the initial status message in the given chat, as a reply
// to the submitting command.
func (s *Sink) RenderTo(ctx context.Context, to kit.ChatTarget, replyTo int, job eurocore.Job) (kit.MessageRef, error) {
	text := renderJob(job)
	return s.adapter.SendText(ctx, to, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
		ReplyTo:        replyTo,
	})
}

// Ping mentions the initiator as a reply to the job's status message.
func (s *Sink) Ping(ctx context.Context, job eurocore.Job) error {
	if s.notifier == nil {
		return nil
	}
	name := job.InitiatorName
	if name == "" {
		name = "you"
	}
	text := tgui.JoinH(" ",
		tgui.Mention(name, job.InitiatorID),
		tgui.Esc("your dispatch job finished: "+string(job.Status)),
	).String()

	return s.notifier.Notify(ctx, kit.Notification{
		Channel:  "telegram",
		Priority: 5,
		Target:   kit.ChatTarget{ChatID: job.RenderTarget.ChatID, ThreadID: job.RenderTarget.ThreadID},
		Text:     text,
		Options: &kit.SendOptions{
			ParseMode: "HTML",
			ReplyTo:   job.RenderTarget.MessageID,
		},
	})
}

func renderJob(job eurocore.Job) string {
	lines := []tgui.H{
		tgui.JoinH(" ", tgui.B("Job"), tgui.Code(strconv.FormatInt(job.ID, 10)), statusBadge(job.Status)),
		tgui.JoinH(" ", tgui.B("Action:"), tgui.Esc(string(job.Action))),
	}
	if job.Title != "" {
		lines = append(lines, tgui.JoinH(" ", tgui.B("Title:"), tgui.Esc(job.Title)))
	}
	if job.Nation != "" {
		lines = append(lines, tgui.JoinH(" ", tgui.B("Nation:"), tgui.Esc(job.Nation)))
	}
	lines = append(lines,
		tgui.JoinH(" ", tgui.B("Created:"), tgui.Esc(job.CreatedAt.UTC().Format(time.RFC3339))),
		tgui.JoinH(" ", tgui.B("Modified:"), tgui.Esc(job.ModifiedAt.UTC().Format(time.RFC3339))),
	)

	// The dispatch page only exists for content that stays up: hide the link
	// for remove jobs.
	if job.DispatchID != 0 && job.Action != eurocore.ActionRemove {
		lines = append(lines, tgui.JoinH(" ", tgui.B("Dispatch:"), tgui.Link(eurocore.DispatchURL(job.DispatchID), eurocore.DispatchURL(job.DispatchID))))
	}
	if job.Error != "" {
		lines = append(lines, tgui.B("Error:"), tgui.Pre(job.Error))
	}
	if job.InitiatorName != "" {
		lines = append(lines, tgui.I("requested by "+job.InitiatorName))
	}

	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.String())
	}
	return strings.Join(parts, "\n")
}

func statusBadge(st eurocore.Status) tgui.H {
	switch st {
	case eurocore.StatusSuccess:
		return tgui.Raw("✅ " + string(tgui.Esc(string(st))))
	case eurocore.StatusFailure:
		return tgui.Raw("❌ " + string(tgui.Esc(string(st))))
	default:
		return tgui.Raw("⏳ " + string(tgui.Esc(string(st))))
	}
}
