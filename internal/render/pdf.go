package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"docpipe/internal/services"
)

// A4 at 2cm margins, in inches as the print protocol wants.
const (
	paperWidthIn  = 8.27
	paperHeightIn = 11.69
	marginIn      = 0.79
)

// Engine prints one HTML document to PDF.
type Engine interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
	Close() error
}

// ChromiumEngine drives a headless Chromium over the DevTools protocol. One
// browser process serves the whole run; pages are opened per document.
type ChromiumEngine struct {
	browser *rod.Browser
	launch  *launcher.Launcher
	timeout time.Duration
	mu      sync.Mutex
}

// ChromiumConfig configures the print engine. An empty Bin lets the
// launcher find or download a browser on its own.
type ChromiumConfig struct {
	Bin     string
	Timeout time.Duration
}

// NewChromiumEngine launches the browser. A launch failure is fatal for the
// whole batch, not a per-item error.
func NewChromiumEngine(cfg ChromiumConfig) (*ChromiumEngine, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	launch := launcher.New().NoSandbox(true)
	if strings.TrimSpace(cfg.Bin) != "" {
		launch = launch.Bin(cfg.Bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, services.Wrap(services.ErrFatal, "render", "launch browser", "", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		launch.Cleanup()
		return nil, services.Wrap(services.ErrFatal, "render", "connect browser", "", err)
	}

	return &ChromiumEngine{browser: browser, launch: launch, timeout: cfg.Timeout}, nil
}

// Render prints one HTML document to PDF bytes. The document is staged as a
// temp file so relative font and style resolution behaves like a local page.
func (e *ChromiumEngine) Render(ctx context.Context, html []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dir, err := os.MkdirTemp("", "docpipe-render-*")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "render", "stage html", "", err)
	}
	defer os.RemoveAll(dir)

	htmlPath := filepath.Join(dir, "page.html")
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return nil, services.Wrap(services.ErrTransient, "render", "stage html", "", err)
	}

	pdf, err := e.printPage(ctx, "file://"+htmlPath)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransient, "render", "print pdf", "", err)
	}
	return pdf, nil
}

func (e *ChromiumEngine) printPage(ctx context.Context, pageURL string) ([]byte, error) {
	page, err := e.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if err := page.Timeout(e.timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for page load: %w", err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:      floatPtr(paperWidthIn),
		PaperHeight:     floatPtr(paperHeightIn),
		MarginTop:       floatPtr(marginIn),
		MarginBottom:    floatPtr(marginIn),
		MarginLeft:      floatPtr(marginIn),
		MarginRight:     floatPtr(marginIn),
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	return io.ReadAll(reader)
}

// Close shuts the browser down and cleans up the launcher's workspace.
func (e *ChromiumEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.browser != nil {
		err = e.browser.Close()
	}
	if e.launch != nil {
		e.launch.Cleanup()
	}
	return err
}

func floatPtr(v float64) *float64 { return &v }
