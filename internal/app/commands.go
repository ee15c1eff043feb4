package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"eurobot/internal/eurocore"
	kit "eurobot/internal/transport"
	"eurobot/internal/transport/telegram/router"
	logx "eurobot/pkg/logx"
	"eurobot/pkg/tgui"
)

const credentialPromptTimeout = 2 * time.Minute

func (a *App) commands() []router.Command {
	return []router.Command{
		{
			Route:       "register",
			Description: "create a eurocore account",
			Usage:       "/register (then reply: <username> <password>)",
			Handle:      a.cmdRegister,
		},
		{
			Route:       "login",
			Description: "sign in to eurocore",
			Usage:       "/login (then reply: <username> <password>)",
			Handle:      a.cmdLogin,
		},
		{
			Route:       "dispatch add",
			Description: "post a dispatch (.txt attachment, command in caption)",
			Usage:       `/dispatch add "<title>" --nation <nation> --category <code> [--ping]`,
			Handle:      a.cmdDispatchAdd,
		},
		{
			Route:       "dispatch edit",
			Description: "edit a dispatch (.txt attachment, command in caption)",
			Usage:       `/dispatch edit <dispatch-id> "<title>" --category <code> [--ping]`,
			Handle:      a.cmdDispatchEdit,
		},
		{
			Route:       "dispatch delete",
			Description: "delete a dispatch",
			Usage:       "/dispatch delete <dispatch-id> [--ping]",
			Handle:      a.cmdDispatchDelete,
		},
		{
			Route:       "dispatch nations",
			Description: "list nations dispatches may be posted for",
			Usage:       "/dispatch nations",
			Handle:      a.cmdNations,
		},
		{
			Route:       "dispatch categories",
			Description: "list dispatch categories",
			Usage:       "/dispatch categories",
			Handle:      a.cmdCategories,
		},
		{
			Route:       "jobs",
			Description: "show tracked and recent dispatch jobs",
			Usage:       "/jobs [--limit N]",
			Handle:      a.cmdJobs,
		},
	}
}

func reply(ctx context.Context, req *router.Request, text string) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

// promptCredentials asks the user for "username password" in a plain reply.
// Group chats are refused so credentials never land in shared history.
func (a *App) promptCredentials(ctx context.Context, req *router.Request) (eurocore.Credentials, error) {
	msg := req.Message()
	if msg == nil {
		return eurocore.Credentials{}, errors.New("no message context")
	}
	if msg.IsGroup {
		return eurocore.Credentials{}, eurocore.Validationf("credentials are only accepted in a private chat; message me directly")
	}

	if err := reply(ctx, req, "reply with your credentials in one message: <code>username password</code>"); err != nil {
		return eurocore.Credentials{}, err
	}

	wctx, cancel := context.WithTimeout(ctx, credentialPromptTimeout)
	defer cancel()
	answer, err := req.Forms.Await(wctx, req.FromID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return eurocore.Credentials{}, eurocore.Validationf("timed out waiting for credentials, try again")
		}
		return eurocore.Credentials{}, err
	}

	fields := strings.Fields(answer.Text)
	if len(fields) != 2 {
		return eurocore.Credentials{}, eurocore.Validationf("expected exactly two words: <code>username password</code>")
	}
	return eurocore.Credentials{Username: fields[0], Password: fields[1]}, nil
}

func (a *App) cmdRegister(ctx context.Context, req *router.Request) error {
	creds, err := a.promptCredentials(ctx, req)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	s, err := a.sessions.Register(ctx, req.FromID, creds)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}
	return reply(ctx, req, "registration successful, welcome, "+tgui.B(s.Username).String()+"!")
}

func (a *App) cmdLogin(ctx context.Context, req *router.Request) error {
	creds, err := a.promptCredentials(ctx, req)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	s, err := a.sessions.GetOrCreate(ctx, req.FromID, func(context.Context) (eurocore.Credentials, error) {
		return creds, nil
	})
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}
	return reply(ctx, req, "login successful, welcome back, "+tgui.B(s.Username).String()+"!")
}

// session returns the caller's session, prompting for credentials when
// there is none yet.
func (a *App) session(ctx context.Context, req *router.Request) (*eurocore.Session, error) {
	return a.sessions.GetOrCreate(ctx, req.FromID, func(pctx context.Context) (eurocore.Credentials, error) {
		return a.promptCredentials(pctx, req)
	})
}

// dispatchText validates and downloads the .txt attachment carrying the
// dispatch body.
func (a *App) dispatchText(ctx context.Context, req *router.Request) (string, error) {
	msg := req.Message()
	if msg == nil || msg.Document == nil {
		return "", eurocore.Validationf("attach a .txt file with the dispatch text and put the command in its caption")
	}
	doc := msg.Document
	if !strings.HasPrefix(doc.MIME, "text/plain") && !strings.HasSuffix(strings.ToLower(doc.FileName), ".txt") {
		return "", eurocore.Validationf("content must be a .txt file (got %s)", doc.MIME)
	}

	fetcher, ok := req.Adapter.(kit.FileFetcher)
	if !ok {
		return "", errors.New("adapter cannot download attachments")
	}
	raw, err := fetcher.FetchDocument(ctx, doc.FileID)
	if err != nil {
		return "", errors.Wrap(err, "download attachment")
	}
	return string(raw), nil
}

func parseCategoryFlag(req *router.Request) (eurocore.Category, error) {
	raw := strings.TrimSpace(req.Flags["category"])
	if raw == "" {
		return eurocore.Category{}, eurocore.Validationf("missing --category; see /dispatch categories")
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return eurocore.Category{}, eurocore.Validationf("invalid category %q; see /dispatch categories", raw)
	}
	cat, ok := eurocore.CategoryBySubcategory(code)
	if !ok {
		return eurocore.Category{}, eurocore.Validationf("unknown category %d; see /dispatch categories", code)
	}
	return cat, nil
}

func (a *App) cmdDispatchAdd(ctx context.Context, req *router.Request) error {
	if len(req.Args) < 1 {
		return a.replyUserError(ctx, req, eurocore.Validationf("missing title; usage: %s", `/dispatch add "<title>" --nation <nation> --category <code>`))
	}
	title := req.Args[0]

	nation := strings.ToLower(strings.TrimSpace(req.Flags["nation"]))
	if nation == "" {
		return a.replyUserError(ctx, req, eurocore.Validationf("missing --nation; see /dispatch nations"))
	}
	if nations, err := a.client.Nations(ctx); err == nil && !containsFold(nations, nation) {
		return a.replyUserError(ctx, req, eurocore.Validationf("nation %q is not available; see /dispatch nations", nation))
	}

	cat, err := parseCategoryFlag(req)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	text, err := a.dispatchText(ctx, req)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	sess, err := a.session(ctx, req)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	d, err := a.client.Create(ctx, sess.Token, eurocore.DispatchPayload{
		Title:       title,
		Nation:      nation,
		Category:    eurocore.MainCategory(cat.Subcategory),
		Subcategory: cat.Subcategory,
		Text:        text,
	})
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	return a.trackAndRender(ctx, req, d, title, nation)
}

func (a *App) cmdDispatchEdit(ctx context.Context, req *router.Request) error {
	if len(req.Args) < 2 {
		return a.replyUserError(ctx, req, eurocore.Validationf("usage: %s", `/dispatch edit <dispatch-id> "<title>" --category <code>`))
	}
	dispatchID, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		return a.replyUserError(ctx, req, eurocore.Validationf("invalid dispatch id %q", req.Args[0]))
	}
	title := req.Args[1]

	cat, err := parseCategoryFlag(req)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	text, err := a.dispatchText(ctx, req)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	sess, err := a.session(ctx, req)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	d, err := a.client.Edit(ctx, sess.Token, dispatchID, eurocore.DispatchPayload{
		Title:       title,
		Category:    eurocore.MainCategory(cat.Subcategory),
		Subcategory: cat.Subcategory,
		Text:        text,
	})
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	return a.trackAndRender(ctx, req, d, title, "")
}

func (a *App) cmdDispatchDelete(ctx context.Context, req *router.Request) error {
	if len(req.Args) < 1 {
		return a.replyUserError(ctx, req, eurocore.Validationf("usage: /dispatch delete <dispatch-id>"))
	}
	dispatchID, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		return a.replyUserError(ctx, req, eurocore.Validationf("invalid dispatch id %q", req.Args[0]))
	}

	sess, err := a.session(ctx, req)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	d, err := a.client.Delete(ctx, sess.Token, dispatchID)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}

	return a.trackAndRender(ctx, req, d, "", "")
}

// trackAndRender turns a submission response into a tracked job with its
// status message, which the poller keeps updated until terminal.
func (a *App) trackAndRender(ctx context.Context, req *router.Request, d eurocore.JobDescriptor, title, nation string) error {
	msg := req.Message()

	job := eurocore.Job{
		ID:                 d.ID,
		Action:             d.Action,
		Status:             d.Status,
		CreatedAt:          d.CreatedAt.Time,
		ModifiedAt:         d.ModifiedAt.Time,
		Title:              title,
		Nation:             nation,
		InitiatorID:        req.FromID,
		NotifyOnCompletion: req.BoolFlags["ping"],
	}
	if d.DispatchID != nil {
		job.DispatchID = *d.DispatchID
	}
	if d.Error != nil {
		job.Error = *d.Error
	}
	if msg != nil {
		job.InitiatorName = msg.FromUsername
	}

	replyTo := 0
	if msg != nil {
		replyTo = msg.ID
	}
	ref, err := a.sink.RenderTo(ctx, req.Chat, replyTo, job)
	if err != nil {
		req.Logger.Warn("initial render failed", logx.Int64("job_id", job.ID), logx.Err(err))
	}
	job.RenderTarget = ref

	if err := a.registry.Track(&job); err != nil {
		// Duplicate ids are an invariant violation: logged, never surfaced.
		req.Logger.Error("job not tracked", logx.Int64("job_id", job.ID), logx.Err(err))
	}
	return nil
}

func (a *App) cmdNations(ctx context.Context, req *router.Request) error {
	nations, err := a.client.Nations(ctx)
	if err != nil {
		return a.replyUserError(ctx, req, err)
	}
	sort.Strings(nations)

	lines := []string{tgui.B("Available nations").String()}
	for _, n := range nations {
		lines = append(lines, "• "+tgui.Code(n).String())
	}
	return reply(ctx, req, strings.Join(lines, "\n"))
}

func (a *App) cmdCategories(ctx context.Context, req *router.Request) error {
	lines := []string{tgui.B("Dispatch categories").String()}
	for _, c := range eurocore.Categories {
		lines = append(lines, fmt.Sprintf("• %s — %s", tgui.Code(strconv.Itoa(c.Subcategory)), tgui.Esc(c.Name)))
	}
	return reply(ctx, req, strings.Join(lines, "\n"))
}

func (a *App) cmdJobs(ctx context.Context, req *router.Request) error {
	active := a.registry.Active()
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	lines := []string{tgui.B("Tracked jobs").String()}
	if len(active) == 0 {
		lines = append(lines, tgui.I("none").String())
	}
	for _, j := range active {
		lines = append(lines, fmt.Sprintf("• %s %s (%s)",
			tgui.Code(strconv.FormatInt(j.ID, 10)), tgui.Esc(string(j.Action)), tgui.Esc(string(j.Status))))
	}

	if a.store != nil {
		limit := 10
		if v := req.Flags["limit"]; v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
				limit = n
			}
		}
		recent, err := a.store.RecentJobs(ctx, limit)
		if err != nil {
			req.Logger.Warn("job history read failed", logx.Err(err))
		} else if len(recent) > 0 {
			lines = append(lines, "", tgui.B("Recent").String())
			for _, r := range recent {
				lines = append(lines, fmt.Sprintf("• %s %s (%s) %s",
					tgui.Code(strconv.FormatInt(r.JobID, 10)), tgui.Esc(r.Action), tgui.Esc(r.Status),
					tgui.I(r.FinishedAt.UTC().Format("2006-01-02 15:04"))))
			}
		}
	}

	return reply(ctx, req, strings.Join(lines, "\n"))
}

// replyUserError reports expected failures (validation, auth, remote) to the
// user and keeps unexpected ones flowing to the request log.
func (a *App) replyUserError(ctx context.Context, req *router.Request, err error) error {
	switch {
	case errors.Is(err, eurocore.ErrValidation):
		return reply(ctx, req, "⚠️ "+tgui.Raw(err.Error()).String())
	case errors.Is(err, eurocore.ErrAuthentication):
		return reply(ctx, req, "⚠️ authentication failed; check your credentials and /login again")
	case eurocore.IsRemote(err):
		req.Logger.Warn("remote call failed", logx.Err(err))
		return reply(ctx, req, "⚠️ the dispatch service is unavailable, try again later")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return err
	default:
		req.Logger.Warn("command failed", logx.Err(err))
		return reply(ctx, req, "⚠️ something went wrong, try again")
	}
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
