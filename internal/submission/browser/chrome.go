// Package browser drives the external complaint form in headless Chrome.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"civicfix_backend/internal/submission"
	"civicfix_backend/platform/logger"

	"github.com/chromedp/chromedp"
)

// Method is stored as the submission method of reports filed by this package.
const Method = "chromedp"

const (
	defaultFieldTimeout = 10 * time.Second
	submitSelector      = `button[type="submit"]`
)

// Options configures the Chrome session.
type Options struct {
	FormURL      string
	Headless     bool
	ExecPath     string
	FieldTimeout time.Duration
}

// Opener launches Chrome and loads the complaint form.
type Opener struct {
	opts Options
	log  *logger.Logger
}

// NewOpener creates a Chrome form opener.
func NewOpener(opts Options, log *logger.Logger) *Opener {
	if opts.FieldTimeout <= 0 {
		opts.FieldTimeout = defaultFieldTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Opener{opts: opts, log: log}
}

var _ submission.Opener = (*Opener)(nil)

// Open starts a browser and navigates to the form. The browser lives until
// Close, independent of ctx.
func (o *Opener) Open(ctx context.Context) (submission.Session, error) {
	if o.opts.FormURL == "" {
		return nil, errors.New("submission form URL is not configured")
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", o.opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if o.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(o.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &Session{
		browser: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		formURL: o.opts.FormURL,
		timeout: o.opts.FieldTimeout,
	}

	// The first Run starts Chrome and the tab on the context it receives, so
	// it must get the untimed browser context or the browser dies with it.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()
	select {
	case err := <-started:
		if err != nil {
			s.cancel()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-ctx.Done():
		s.cancel()
		return nil, ctx.Err()
	}

	if err := s.Reset(ctx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("load complaint form: %w", err)
	}
	o.log.WithContext(ctx).Info("complaint form opened", "url", o.opts.FormURL, "headless", o.opts.Headless)
	return s, nil
}

// Session is a live Chrome tab on the complaint form.
type Session struct {
	browser context.Context
	cancel  context.CancelFunc
	formURL string
	timeout time.Duration
}

var _ submission.Session = (*Session)(nil)

func (s *Session) Method() string { return Method }

// Reset reloads the form so no value from a previous attempt survives.
func (s *Session) Reset(ctx context.Context) error {
	return s.run(ctx, 3*s.timeout,
		chromedp.Navigate(s.formURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *Session) Fill(ctx context.Context, field, value string) error {
	sel := fieldSelector(field)
	return s.run(ctx, s.timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

func (s *Session) Select(ctx context.Context, field, option string) error {
	sel := fieldSelector(field)
	script, err := selectByTextScript(sel, option)
	if err != nil {
		return err
	}

	var found bool
	if err := s.run(ctx, s.timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Evaluate(script, &found),
	); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("option %q not available in %s", option, field)
	}
	return nil
}

func (s *Session) AttachFile(ctx context.Context, field, path string) error {
	sel := fieldSelector(field)
	return s.run(ctx, s.timeout,
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.SetUploadFiles(sel, []string{path}, chromedp.ByQuery),
	)
}

func (s *Session) Submit(ctx context.Context) error {
	return s.run(ctx, s.timeout,
		chromedp.WaitVisible(submitSelector, chromedp.ByQuery),
		chromedp.Click(submitSelector, chromedp.ByQuery),
	)
}

// Close shuts the browser down.
func (s *Session) Close() error {
	s.cancel()
	return nil
}

// run executes actions in the browser tab, bounded by timeout and by ctx.
// The tab must already be allocated; see Open.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.browser, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tctx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func fieldSelector(field string) string {
	return fmt.Sprintf(`[name=%q]`, field)
}

// selectByTextScript picks the option whose visible text matches and fires
// change. It evaluates to false when no option matches.
func selectByTextScript(selector, option string) (string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", err
	}
	text, err := json.Marshal(option)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function() {
	const el = document.querySelector(%s);
	if (!el) { return false; }
	const opt = Array.from(el.options).find(o => o.text.trim() === %s);
	if (!opt) { return false; }
	el.value = opt.value;
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})()`, sel, text), nil
}
