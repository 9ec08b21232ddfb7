// Package browser is a thin convenience wrapper over Playwright. It mirrors
// the driver surface Dagger hosts poke at from the console: selector-based
// element helpers with an implicit wait, navigation and screenshots.
package browser

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/playwright-community/playwright-go"

	"dagger/internal/logger"
)

// Defaults applied when the host does not override them.
const (
	DefaultTimeout        = 10_000 // milliseconds
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
)

// Viewport is the page size in pixels.
type Viewport struct {
	Width  int
	Height int
}

// Position is the upper-left window corner in screen pixels.
type Position struct {
	X int
	Y int
}

// Options configures a launched browser.
type Options struct {
	Headless bool
	Viewport *Viewport
	Position *Position
	// Timeout is the implicit wait for element helpers, in milliseconds.
	Timeout float64
}

// Driver wraps a running browser and a single page.
type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	timeout float64
	log     *log.Logger
}

// Available returns the launchable browser names.
func Available() []string {
	return []string{"chrome", "firefox"}
}

// Launch installs and starts Playwright, launches the named browser and opens
// one page. An unknown name falls back to chrome with a logged warning.
func Launch(name string, opts Options) (*Driver, error) {
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	componentLog := logger.NewStyledLogger("Browser")

	var browserType playwright.BrowserType
	switch name {
	case "chrome":
		browserType = pw.Chromium
	case "firefox":
		browserType = pw.Firefox
	default:
		componentLog.Warn("Unknown browser, falling back to chrome", "browser", name)
		browserType = pw.Chromium
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.Position != nil {
		launchOpts.Args = append(launchOpts.Args,
			fmt.Sprintf("--window-position=%d,%d", opts.Position.X, opts.Position.Y))
	}

	browser, err := browserType.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", name, err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		_ = context.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	page.SetDefaultTimeout(opts.Timeout)

	componentLog.Debug("Browser launched", "browser", name, "headless", opts.Headless)

	return &Driver{
		pw:      pw,
		browser: browser,
		context: context,
		page:    page,
		timeout: opts.Timeout,
		log:     componentLog,
	}, nil
}

// Navigate loads the given URL in the driver's page.
func (d *Driver) Navigate(url string) error {
	if _, err := d.page.Goto(url); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// URL returns the page's current URL.
func (d *Driver) URL() string {
	return d.page.URL()
}

// Title returns the page's current title.
func (d *Driver) Title() (string, error) {
	return d.page.Title()
}

// waitFor blocks until the element matched by selector reaches the given
// state, then returns its handle.
func (d *Driver) waitFor(selector string, state *playwright.WaitForSelectorState) (playwright.ElementHandle, error) {
	element, err := d.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   state,
		Timeout: playwright.Float(d.timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("timed out waiting for %q: %w", selector, err)
	}
	return element, nil
}

// GetElement waits until the element matched by selector is visible and
// returns its handle.
func (d *Driver) GetElement(selector string) (playwright.ElementHandle, error) {
	return d.waitFor(selector, playwright.WaitForSelectorStateVisible)
}

// ClickOn waits for the element and clicks it.
func (d *Driver) ClickOn(selector string) error {
	element, err := d.GetElement(selector)
	if err != nil {
		return err
	}
	if err := element.Click(); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// ForceClickOn dispatches a JavaScript click on the element, bypassing
// actionability checks. Useful for elements covered by overlays.
func (d *Driver) ForceClickOn(selector string) error {
	element, err := d.GetElement(selector)
	if err != nil {
		return err
	}
	if _, err := element.Evaluate("el => el.click()"); err != nil {
		return fmt.Errorf("forced click on %q failed: %w", selector, err)
	}
	return nil
}

// WaitPresent blocks until the element is attached to the DOM.
func (d *Driver) WaitPresent(selector string) error {
	_, err := d.waitFor(selector, playwright.WaitForSelectorStateAttached)
	return err
}

// WaitVisible blocks until the element is visible on the page.
func (d *Driver) WaitVisible(selector string) error {
	_, err := d.GetElement(selector)
	return err
}

// Attribute waits for the element to be visible and extracts one attribute
// value. A missing attribute yields an empty string.
func (d *Driver) Attribute(selector, name string) (string, error) {
	element, err := d.GetElement(selector)
	if err != nil {
		return "", err
	}
	value, err := element.GetAttribute(name)
	if err != nil {
		return "", fmt.Errorf("attribute %q of %q: %w", name, selector, err)
	}
	return value, nil
}

// Attributes waits for the element to be visible and extracts every
// attribute it currently holds.
func (d *Driver) Attributes(selector string) (map[string]string, error) {
	element, err := d.GetElement(selector)
	if err != nil {
		return nil, err
	}
	raw, err := element.Evaluate(`el => {
		const out = {};
		for (const a of el.attributes) out[a.name] = a.value;
		return out;
	}`)
	if err != nil {
		return nil, fmt.Errorf("attributes of %q: %w", selector, err)
	}
	attrs := make(map[string]string)
	if m, ok := raw.(map[string]any); ok {
		for k, v := range m {
			attrs[k] = fmt.Sprint(v)
		}
	}
	return attrs, nil
}

// Screenshot captures the page into the given file.
func (d *Driver) Screenshot(path string) error {
	_, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	d.log.Debug("Screenshot written", "path", path)
	return nil
}

// Close shuts the browser down and stops the Playwright runtime.
func (d *Driver) Close() error {
	if err := d.context.Close(); err != nil {
		d.log.Warn("Failed to close browser context", "error", err)
	}
	if err := d.browser.Close(); err != nil {
		_ = d.pw.Stop()
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return d.pw.Stop()
}
