// Package orchestrator sequences a capture end to end: foreground-app
// sampling, selection, raw capture, crop, persistence, sidecar creation,
// and index registration.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/screenshotos/screenshotos/internal/activeapp"
	"github.com/screenshotos/screenshotos/internal/capture"
	"github.com/screenshotos/screenshotos/internal/clipboard"
	"github.com/screenshotos/screenshotos/internal/config"
	"github.com/screenshotos/screenshotos/internal/crop"
	"github.com/screenshotos/screenshotos/internal/display"
	"github.com/screenshotos/screenshotos/internal/geometry"
	"github.com/screenshotos/screenshotos/internal/index"
	"github.com/screenshotos/screenshotos/internal/logger"
	"github.com/screenshotos/screenshotos/internal/notify"
	"github.com/screenshotos/screenshotos/internal/overlay"
	"github.com/screenshotos/screenshotos/internal/sidecar"
	"github.com/screenshotos/screenshotos/internal/storage"
)

// CapturedImage describes one completed capture.
type CapturedImage struct {
	Path        string            `json:"path"`
	FileName    string            `json:"fileName"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Method      string            `json:"method"`
	CapturedAt  time.Time         `json:"capturedAt"`
	Application activeapp.AppInfo `json:"application"`
}

// Orchestrator wires the capture pipeline together. One instance per
// process; the overlay controller underneath already rejects concurrent
// gestures.
type Orchestrator struct {
	displays *display.Manager
	selector overlay.Selector
	backend  capture.Backend
	sidecars *sidecar.Store
	idx      *index.Indexer
	cfg      *config.Manager
	apps     activeapp.Provider
	notifier notify.Notifier
	clip     clipboard.Writer

	// OnCapture, when set, runs after each successful capture. Used to
	// push events to connected clients.
	OnCapture func(CapturedImage)
}

// New creates the capture orchestrator.
func New(
	displays *display.Manager,
	selector overlay.Selector,
	backend capture.Backend,
	sidecars *sidecar.Store,
	idx *index.Indexer,
	cfg *config.Manager,
	apps activeapp.Provider,
	notifier notify.Notifier,
	clip clipboard.Writer,
) *Orchestrator {
	return &Orchestrator{
		displays: displays,
		selector: selector,
		backend:  backend,
		sidecars: sidecars,
		idx:      idx,
		cfg:      cfg,
		apps:     apps,
		notifier: notifier,
		clip:     clip,
	}
}

// CaptureFullScreen captures the full virtual screen: the union of every
// display, secondary monitors included.
func (o *Orchestrator) CaptureFullScreen(ctx context.Context) (*CapturedImage, error) {
	// Foreground app is sampled first; once capture machinery runs, the
	// sample would name this tool instead of the user's application.
	app := o.apps.ActiveApp()

	displays, err := o.displays.ListDisplays()
	if err != nil {
		return nil, err
	}
	primaryIdx := 0
	for i, d := range displays {
		if d.Primary {
			primaryIdx = i
			break
		}
	}

	img, err := o.backend.CaptureFullVirtualScreen()
	if err != nil {
		logger.WithComponent("orchestrator").Warn().
			Err(err).
			Msg("Virtual screen capture failed, falling back to primary display")
		img, err = o.backend.CaptureDisplay(primaryIdx)
		if err != nil {
			return nil, fmt.Errorf("capture failed: %w", err)
		}
	}

	meta := sidecar.CaptureMetadata{
		SourceDisplayID: displays[primaryIdx].ID,
		CaptureMethod:   "fullscreen",
		Application:     appMetadata(app),
	}
	return o.persist(ctx, img, "fullscreen", app, meta)
}

// CaptureArea runs the area-selection gesture and captures the selected
// region. Returns (nil, nil) when the user cancels.
func (o *Orchestrator) CaptureArea(ctx context.Context) (*CapturedImage, error) {
	app := o.apps.ActiveApp()

	// One snapshot serves the whole operation. Overlay placement, the
	// coordinate transform, and the id-to-index mapping must all agree on
	// the same display list.
	displays, err := o.displays.ListDisplays()
	if err != nil {
		return nil, err
	}

	result, err := o.selector.Select(ctx, displays)
	if err != nil {
		return nil, err
	}
	if result == nil {
		logger.WithComponent("orchestrator").Info().Msg("Area capture cancelled")
		return nil, nil
	}

	rect, err := geometry.Transform(displays, result.Selection, result.DisplayID)
	if err != nil {
		return nil, err
	}

	captureIdx := 0
	for i, d := range displays {
		if d.ID == rect.DisplayID {
			captureIdx = i
			break
		}
	}

	img, err := o.captureRegion(captureIdx, rect)
	if err != nil {
		return nil, err
	}

	meta := sidecar.CaptureMetadata{
		SourceDisplayID: rect.DisplayID,
		CaptureMethod:   "area",
		Application:     appMetadata(app),
		CaptureArea: map[string]int{
			"x":      rect.X,
			"y":      rect.Y,
			"width":  rect.Width,
			"height": rect.Height,
		},
	}
	return o.persist(ctx, img, "area", app, meta)
}

// captureRegion captures one display and crops the region out of it,
// falling back to a full-virtual-screen grab when the per-display
// capture fails.
func (o *Orchestrator) captureRegion(captureIdx int, rect geometry.PhysicalRect) (*image.RGBA, error) {
	src, err := o.backend.CaptureDisplay(captureIdx)
	if err == nil {
		return crop.Crop(src, rect)
	}
	if !errors.Is(err, capture.ErrBackend) {
		return nil, err
	}

	logger.WithComponent("orchestrator").Warn().
		Err(err).
		Int("display_index", captureIdx).
		Msg("Display capture failed, cropping from virtual screen")

	src, err = o.backend.CaptureFullVirtualScreen()
	if err != nil {
		return nil, fmt.Errorf("capture failed: %w", err)
	}

	// The virtual-screen buffer is zero-origin but covers the union of
	// all displays; shift the display-local rectangle into buffer space
	// using the backend's own geometry.
	bounds := o.backend.DisplayBounds(captureIdx)
	union := bounds
	for i := 0; i < o.backend.NumDisplays(); i++ {
		union = union.Union(o.backend.DisplayBounds(i))
	}
	shifted := rect.Translate(bounds.Min.X-union.Min.X, bounds.Min.Y-union.Min.Y)
	return crop.Crop(src, shifted)
}

// persist encodes, writes, registers, and announces a captured image.
// Persistence is the only fatal step; everything after the image is
// safely on disk degrades to a warning.
func (o *Orchestrator) persist(ctx context.Context, img *image.RGBA, method string, app activeapp.AppInfo, meta sidecar.CaptureMetadata) (*CapturedImage, error) {
	cfg := o.cfg.Get()
	now := time.Now()

	data, err := storage.Encode(img, cfg.FileFormat)
	if err != nil {
		return nil, err
	}

	name := storage.Filename(cfg.FilenameTemplate, cfg.FileFormat, now)
	path := filepath.Join(cfg.SaveDirectory, name)
	if err := storage.WriteAtomic(path, data); err != nil {
		return nil, err
	}

	meta.FileFormat = cfg.FileFormat
	if err := o.sidecars.Create(path, meta, nil, "", nil); err != nil {
		logger.WithComponent("orchestrator").Warn().
			Err(err).
			Str("image", path).
			Msg("Sidecar creation failed")
	}

	o.idx.AddImage(path)

	if cfg.CopyToClipboard {
		if err := o.clip.WriteImage(ctx, data); err != nil {
			logger.WithComponent("orchestrator").Warn().
				Err(err).
				Msg("Clipboard copy failed")
		}
	}

	size := img.Bounds().Size()
	captured := CapturedImage{
		Path:        path,
		FileName:    name,
		Width:       size.X,
		Height:      size.Y,
		Method:      method,
		CapturedAt:  now,
		Application: app,
	}

	if err := o.notifier.Notify("Screenshot saved", name, path); err != nil {
		logger.WithComponent("orchestrator").Debug().
			Err(err).
			Msg("Notification skipped")
	}

	logger.WithComponent("orchestrator").Info().
		Str("image", path).
		Str("method", method).
		Str("application", app.Name).
		Int("width", size.X).
		Int("height", size.Y).
		Msg("Capture complete")

	if o.OnCapture != nil {
		o.OnCapture(captured)
	}
	return &captured, nil
}

func appMetadata(app activeapp.AppInfo) map[string]any {
	m := map[string]any{"name": app.Name}
	if app.BundleID != "" {
		m["bundleId"] = app.BundleID
	}
	if app.WindowTitle != "" {
		m["windowTitle"] = app.WindowTitle
	}
	return m
}
