package adapter

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	tele "gopkg.in/telebot.v4"

	rtsup "eurobot/internal/runtime/supervisor"
	kit "eurobot/internal/transport"
	logx "eurobot/pkg/logx"
)

const (
	telegramTextLimit = 4000
	dropReportPeriod  = 5 * time.Second
	stopGrace         = 2 * time.Second
)

// Adapter drives telebot long polling and translates between telebot
// types and the platform-neutral kit types.
type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Value // chan<- kit.Update
	runMu   sync.Mutex
	running bool

	// sup owns the adapter goroutines (poll loop, drop reporter, stop
	// watcher); created on Start, cancelled on Stop.
	sup *rtsup.Supervisor

	// Updates shed because the consumer lagged the poll loop; reported
	// periodically instead of per update.
	dropped uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: bot}
	// Seed the atomic.Value so later Stores keep one dynamic type.
	var unset chan<- kit.Update
	a.out.Store(unset)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil {
			return nil
		}
		a.forward(kit.Update{Kind: kit.UpdateMessage, Message: fromTele(m, m.Text)})
		return nil
	})

	// A document message carries the command in its caption; the attachment
	// is the dispatch text payload.
	a.bot.Handle(tele.OnDocument, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Document == nil {
			return nil
		}
		msg := fromTele(m, m.Caption)
		msg.Document = &kit.Document{
			FileID:   m.Document.FileID,
			FileName: m.Document.FileName,
			MIME:     m.Document.MIME,
			Size:     m.Document.FileSize,
		}
		a.forward(kit.Update{Kind: kit.UpdateMessage, Message: msg})
		return nil
	})
}

func fromTele(m *tele.Message, text string) *kit.Message {
	return &kit.Message{
		ID:           m.ID,
		ChatID:       m.Chat.ID,
		ThreadID:     m.ThreadID,
		FromID:       m.Sender.ID,
		FromUsername: m.Sender.Username,
		Text:         text,
		IsGroup:      m.Chat.Type != tele.ChatPrivate,
	}
}

// forward hands the update to the current consumer, shedding when full.
func (a *Adapter) forward(up kit.Update) {
	out, _ := a.out.Load().(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.dropped, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "telegram.adapter"))),
		// Adapter trouble is self-healed here, never escalated.
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	reportDrops := func() {
		if n := atomic.SwapUint64(&a.dropped, 0); n > 0 {
			a.log.Warn("incoming updates dropped (channel full)",
				logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
		}
	}
	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(dropReportPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				reportDrops()
				return
			case <-ticker.C:
				reportDrops()
			}
		}
	})

	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		if a.bot != nil {
			a.bot.Stop()
		}
	})

	// telebot's Start blocks until Stop; some failure modes make it return
	// early, so it runs under a restart loop.
	sup.GoRestart0("telebot.poll", func(c context.Context) {
		a.log.Info("polling started")
		if a.bot != nil {
			a.bot.Start()
		}
		a.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithPublishFirstError(true),
		rtsup.WithStopOnCleanExit(false),
	)

	return nil
}

// Stop is best-effort: the getUpdates long poll may hold the connection,
// so the wait is capped rather than letting it pin shutdown.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var unset chan<- kit.Update
	a.out.Store(unset)
	a.runMu.Unlock()

	a.log.Info("stopping", logx.Uint64("dropped_updates_pending", atomic.LoadUint64(&a.dropped)))
	if !wasRunning {
		a.log.Debug("telegram stop called but not running")
		return nil
	}

	if sup != nil {
		sup.Cancel()
	}
	if a.bot != nil {
		go a.bot.Stop()
	}
	if sup == nil {
		return nil
	}

	grace := stopGrace
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	if err := sup.Wait(wctx); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			a.log.Warn("telegram stop timed out", logx.Err(err))
		case sup.Context().Err() != nil:
			a.log.Debug("telegram stopped with supervisor error", logx.Err(err))
		default:
			a.log.Warn("telegram stop error", logx.Err(err))
		}
	}
	return nil
}

// splitTelegramText chunks long messages for Telegram's message limit,
// preferring newline boundaries and, for HTML parse mode, backing off a
// chunk end that would land inside a tag.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return []string{s}
	}

	html := strings.EqualFold(parseMode, "HTML")
	out := make([]string, 0, (len(runes)+limit-1)/limit)
	start := 0
	for start < len(runes) {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			// Walk back to a newline, but refuse tiny chunks.
			for i := end - 1; i > start; i-- {
				if runes[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if html && end < len(runes) {
			// A '<' after the last '>' means the window ends mid-tag.
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch runes[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
				if end <= start {
					end = start + limit
					if end > len(runes) {
						end = len(runes)
					}
				}
			}
		}

		out = append(out, strings.TrimRight(string(runes[start:end]), "\n"))

		start = end
		for start < len(runes) && runes[start] == '\n' {
			start++
		}
	}
	return out
}

func (a *Adapter) sendOptions(to kit.ChatTarget, opt *kit.SendOptions, withReply bool) *tele.SendOptions {
	so := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
	if withReply && opt.ReplyTo != 0 {
		so.ReplyTo = &tele.Message{ID: opt.ReplyTo, Chat: &tele.Chat{ID: to.ChatID}}
	}
	return so
}

// SendText sends text in as many chunks as needed; the returned ref points
// at the first chunk, which is also the only one carrying the reply link.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}

	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	chat := &tele.Chat{ID: to.ChatID}
	var first kit.MessageRef
	for i, chunk := range chunks {
		if ctx != nil && ctx.Err() != nil {
			return first, ctx.Err()
		}
		msg, err := a.bot.Send(chat, chunk, a.sendOptions(to, opt, i == 0))
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

// EditText rewrites ref with the first chunk; overflow past the message
// limit goes out as fresh messages after the edit.
func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}

	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	target := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	if _, err := a.bot.Edit(target, chunks[0], &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	}); err != nil {
		return err
	}

	if len(chunks) > 1 {
		to := kit.ChatTarget{ChatID: ref.ChatID, ThreadID: ref.ThreadID}
		chat := &tele.Chat{ID: to.ChatID}
		for _, chunk := range chunks[1:] {
			if ctx != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if _, err := a.bot.Send(chat, chunk, a.sendOptions(to, opt, false)); err != nil {
				return err
			}
		}
	}
	return nil
}

// FetchDocument downloads a message attachment via Telegram getFile.
func (a *Adapter) FetchDocument(ctx context.Context, fileID string) ([]byte, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	rc, err := a.bot.File(&tele.File{FileID: fileID})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
