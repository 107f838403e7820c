package exporter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"plandash/internal/errors"
)

// Renderer converts a rendered chart page into a static artifact.
type Renderer interface {
	RenderPNG(ctx context.Context, htmlPath, outPath string) error
	RenderPDF(ctx context.Context, htmlPath, outPath string) error
}

// ChromeRenderer drives a headless Chrome instance to capture chart
// pages as PNG screenshots or printed PDFs.
type ChromeRenderer struct {
	logger  *slog.Logger
	timeout time.Duration
}

// NewChromeRenderer creates a renderer with a default per-capture timeout.
func NewChromeRenderer(logger *slog.Logger) *ChromeRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeRenderer{logger: logger, timeout: 60 * time.Second}
}

// RenderPNG captures a full-page screenshot of the chart page.
func (r *ChromeRenderer) RenderPNG(ctx context.Context, htmlPath, outPath string) error {
	var buf []byte
	err := r.run(ctx, htmlPath, chromedp.FullScreenshot(&buf, 95))
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, buf, 0644); err != nil {
		return errors.NewSaveConflictError(outPath, err)
	}
	r.logger.Info("png rendered",
		slog.String("source", htmlPath),
		slog.String("path", outPath),
		slog.Int("bytes", len(buf)))
	return nil
}

// RenderPDF prints the chart page to a landscape PDF.
func (r *ChromeRenderer) RenderPDF(ctx context.Context, htmlPath, outPath string) error {
	var buf []byte
	err := r.run(ctx, htmlPath, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = page.PrintToPDF().
			WithPrintBackground(true).
			WithLandscape(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, buf, 0644); err != nil {
		return errors.NewSaveConflictError(outPath, err)
	}
	r.logger.Info("pdf rendered",
		slog.String("source", htmlPath),
		slog.String("path", outPath),
		slog.Int("bytes", len(buf)))
	return nil
}

// run navigates headless Chrome to the page and executes the capture
// action once the chart script has had a moment to draw.
func (r *ChromeRenderer) run(ctx context.Context, htmlPath string, capture chromedp.Action) error {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return errors.NewStorageError("cannot resolve chart path", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return errors.NewStorageError("chart page not found: "+htmlPath, err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, r.timeout)
	defer cancelRun()

	err = chromedp.Run(runCtx,
		chromedp.Navigate("file://"+abs),
		chromedp.Sleep(2*time.Second),
		capture,
	)
	if err != nil {
		return errors.NewRenderError("headless chrome capture failed", err)
	}
	return nil
}
