// Package browser drives a Chrome instance through a Google Meet session:
// joining, caption scraping, and feeding synthesized audio back into the call
// through an injected page bridge.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/notulaai/notula/internal/captions"
)

const (
	pageSettleDelay = 5 * time.Second
	admissionPoll   = time.Second
	keepAlivePoll   = 2 * time.Second
)

// Ensure the driver can feed the caption scraper.
var _ captions.BlockSource = (*Driver)(nil)

type driverConfig struct {
	headless   bool
	profileDir string
}

// DriverOption configures New.
type DriverOption func(*driverConfig)

// WithHeadless runs Chrome in new-headless mode. Audio capture still works
// because Chrome keeps emitting to PulseAudio without a display.
func WithHeadless() DriverOption {
	return func(c *driverConfig) { c.headless = true }
}

// WithProfileDir uses a fixed Chrome profile directory instead of a temporary
// one. The directory is not removed on Close.
func WithProfileDir(dir string) DriverOption {
	return func(c *driverConfig) { c.profileDir = dir }
}

// Driver owns one Chrome instance for the duration of a meeting job.
// Not safe for concurrent method calls except CaptionBlocks and PlayPCM,
// which only evaluate scripts in the page.
type Driver struct {
	browserCtx context.Context
	cancels    []context.CancelFunc

	profileDir  string
	ownsProfile bool
}

// New launches Chrome with the media settings a meeting bot needs and
// preloads the audio bridge into every page.
func New(ctx context.Context, opts ...DriverOption) (*Driver, error) {
	var cfg driverConfig
	for _, o := range opts {
		o(&cfg)
	}

	d := &Driver{profileDir: cfg.profileDir}
	if d.profileDir == "" {
		dir, err := os.MkdirTemp("", "notula-chrome-")
		if err != nil {
			return nil, fmt.Errorf("browser: create profile dir: %w", err)
		}
		d.profileDir = dir
		d.ownsProfile = true
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserDataDir(d.profileDir),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("use-fake-ui-for-media-stream", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("start-maximized", true),
	}
	if cfg.headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	d.browserCtx = browserCtx
	d.cancels = []context.CancelFunc{browserCancel, allocCancel}

	// Starting the browser and registering the bridge happen together; the
	// bridge must be in place before the Meet page loads.
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(pageBridge).Do(ctx)
		return err
	}))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}
	return d, nil
}

// Join navigates to meetURL, mutes mic and camera on the lobby page, fills in
// guestName, and requests to join. Lobby widgets vary between account types,
// so each interaction is best effort; admission is verified separately via
// [Driver.WaitForAdmission].
func (d *Driver) Join(ctx context.Context, meetURL, guestName string) error {
	runCtx, cancel := mergeContexts(d.browserCtx, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx,
		chromedp.Navigate(meetURL),
		chromedp.Sleep(pageSettleDelay),
	); err != nil {
		return fmt.Errorf("browser: open %s: %w", meetURL, err)
	}

	// Mute mic and camera if the lobby shows toggles.
	d.tryEvaluate(runCtx, `
		for (const kind of ['microphone', 'camera']) {
			const b = document.querySelector('div[role="button"][aria-label*="' + kind + '"]');
			if (b && b.getAttribute('aria-pressed') !== 'true') b.click();
		}`)

	if guestName != "" {
		d.tryRun(runCtx, 10*time.Second,
			chromedp.SendKeys(`input[aria-label="Your name"]`, guestName, chromedp.ByQuery))
	}

	if !d.tryRun(runCtx, 15*time.Second,
		chromedp.Click(`//span[text()='Ask to join']/ancestor::button`, chromedp.BySearch)) {
		if !d.tryRun(runCtx, 5*time.Second,
			chromedp.Click(`//span[text()='Join now']/ancestor::button`, chromedp.BySearch)) {
			return fmt.Errorf("browser: no join button found at %s", meetURL)
		}
	}
	slog.Info("join requested", "url", meetURL, "guest_name", guestName)
	return nil
}

// WaitForAdmission polls until the in-call toolbar appears, meaning a host
// admitted the bot (or the meeting needed no admission). Returns an error when
// timeout elapses first.
func (d *Driver) WaitForAdmission(ctx context.Context, timeout time.Duration) error {
	runCtx, cancel := mergeContexts(d.browserCtx, ctx)
	defer cancel()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.InCall(runCtx) {
			slog.Info("admitted to meeting")
			return nil
		}
		select {
		case <-runCtx.Done():
			return fmt.Errorf("browser: waiting for admission: %w", runCtx.Err())
		case <-time.After(admissionPoll):
		}
	}
	return fmt.Errorf("browser: not admitted within %s", timeout)
}

// InCall reports whether the in-call toolbar is present.
func (d *Driver) InCall(ctx context.Context) bool {
	runCtx, cancel := mergeContexts(d.browserCtx, ctx)
	defer cancel()

	var present bool
	err := chromedp.Run(runCtx, chromedp.Evaluate(
		`!!document.querySelector('button[aria-label="Leave call"]')`, &present))
	return err == nil && present
}

// EnableCaptions turns on live captions when they are off. The button's
// aria-label flips between "Turn on captions" and "Turn off captions".
func (d *Driver) EnableCaptions(ctx context.Context) error {
	runCtx, cancel := mergeContexts(d.browserCtx, ctx)
	defer cancel()

	var clicked bool
	err := chromedp.Run(runCtx, chromedp.Evaluate(`(() => {
		for (const b of document.querySelectorAll('button[aria-label*="captions"]')) {
			if (b.getAttribute('aria-label').includes('Turn on captions')) {
				b.click();
				return true;
			}
		}
		return false;
	})()`, &clicked))
	if err != nil {
		return fmt.Errorf("browser: enable captions: %w", err)
	}
	slog.Info("captions ready", "clicked", clicked)
	return nil
}

// KeepAlive blocks while the bot remains in the call, polling the in-call
// toolbar. It returns nil when the meeting ends (toolbar gone) and ctx.Err()
// when the caller cancels first.
func (d *Driver) KeepAlive(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(keepAlivePoll):
		}
		if !d.InCall(ctx) {
			slog.Info("meeting ended")
			return nil
		}
	}
}

// CaptionBlocks implements [captions.BlockSource] against the live DOM.
func (d *Driver) CaptionBlocks(ctx context.Context) ([]captions.Block, error) {
	runCtx, cancel := mergeContexts(d.browserCtx, ctx)
	defer cancel()

	var raw []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	}
	err := chromedp.Run(runCtx, chromedp.Evaluate(`window.meetPipe.captionBlocks()`, &raw))
	if err != nil {
		return nil, fmt.Errorf("browser: read captions: %w", err)
	}

	blocks := make([]captions.Block, len(raw))
	for i, b := range raw {
		blocks[i] = captions.Block{Speaker: b.Speaker, Text: b.Text}
	}
	return blocks, nil
}

// PlayPCM pushes one chunk of mono 16-bit little-endian PCM into the call via
// the page bridge. Blocks until the page acknowledged the chunk; actual
// playback happens asynchronously in the page's audio queue.
func (d *Driver) PlayPCM(pcm []byte, sampleRate int) {
	encoded, err := json.Marshal(pcmSamples(pcm))
	if err != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(d.browserCtx, 10*time.Second)
	defer cancel()

	expr := fmt.Sprintf("window.meetPipe.playPCM(%s, %d, 1)", encoded, sampleRate)
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, nil)); err != nil {
		slog.Warn("audio chunk delivery failed", "error", err)
	}
}

// StopPlayback clears the page bridge's playback queue and stops any scheduled
// audio. Chunks already accepted by playPCM fall silent immediately.
func (d *Driver) StopPlayback() {
	runCtx, cancel := context.WithTimeout(d.browserCtx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate("window.meetPipe.stop()", nil)); err != nil {
		slog.Warn("page playback stop failed", "error", err)
	}
}

// Leave clicks the leave button. Best effort; the session is torn down by
// Close regardless.
func (d *Driver) Leave(ctx context.Context) {
	runCtx, cancel := mergeContexts(d.browserCtx, ctx)
	defer cancel()
	d.tryEvaluate(runCtx, `
		const b = document.querySelector('button[aria-label="Leave call"]');
		if (b) b.click();`)
}

// Close shuts down Chrome and removes the temporary profile directory.
func (d *Driver) Close() {
	for _, cancel := range d.cancels {
		cancel()
	}
	if d.ownsProfile && d.profileDir != "" {
		os.RemoveAll(d.profileDir)
	}
}

// tryRun executes actions with a per-attempt timeout and reports success.
func (d *Driver) tryRun(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) bool {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...) == nil
}

// tryEvaluate runs a script, ignoring errors.
func (d *Driver) tryEvaluate(ctx context.Context, script string) {
	_ = chromedp.Run(ctx, chromedp.Evaluate("(() => {"+script+"})()", nil))
}

// pcmSamples decodes little-endian 16-bit PCM into the sample slice the page
// bridge expects. A trailing odd byte is dropped.
func pcmSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
	}
	return samples
}

// mergeContexts returns base bounded by the caller's cancellation and
// deadline. chromedp actions must run on the browser's context chain, so the
// caller's ctx cannot be passed to chromedp.Run directly.
func mergeContexts(base, caller context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(base)
	stop := context.AfterFunc(caller, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
