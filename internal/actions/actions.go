// File: internal/actions/actions.go

// Package actions is the UI action library: page-level operations built
// purely on a debug channel plus bounded retrying. Asynchronous page state
// (navigation in flight, elements not yet rendered) is made observable as
// synchronous, bounded calls.
package actions

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strconv"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chromehand/internal/cdp"
	"github.com/xkilldash9x/chromehand/internal/retry"
)

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a scroll offset.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UI bundles a channel with the retry policy its polling operations use.
type UI struct {
	ch     *cdp.Channel
	waiter *retry.Waiter
	logger *zap.Logger
}

// NewUI wraps a channel. The policy bounds every wait this UI performs.
func NewUI(ch *cdp.Channel, policy retry.Policy, logger *zap.Logger) *UI {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("actions")
	return &UI{
		ch:     ch,
		waiter: retry.NewWaiter(policy, log),
		logger: log,
	}
}

const bodyTextJS = "document.body.innerText;"

func isJSError(err error) bool {
	var jsErr *cdp.JSError
	return errors.As(err, &jsErr)
}

// Navigate points the page at url and waits until the body text actually
// changes, because the location assignment returns before the new document
// is in place. Navigating to a page with byte-identical body text will look
// like a timeout; callers doing that should assert on the URL instead.
func (u *UI) Navigate(ctx context.Context, url string) error {
	before, err := u.ch.EvalValue(ctx, bodyTextJS)
	if err != nil {
		return fmt.Errorf("reading page text before navigation: %w", err)
	}

	if _, err := u.ch.EvalValue(ctx, fmt.Sprintf("window.location=%s", strconv.Quote(url))); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}

	u.logger.Debug("waiting for navigation to settle", zap.String("url", url))
	_, err = retry.UntilValue(ctx, u.waiter,
		func(v any) bool { return v != before },
		func(ctx context.Context) (any, error) {
			// A transient script error here just means the new document
			// is still loading.
			v, err := u.ch.EvalValue(ctx, bodyTextJS)
			if isJSError(err) {
				return before, nil
			}
			return v, err
		})
	if err != nil {
		return fmt.Errorf("navigation to %s did not settle: %w", url, err)
	}
	return nil
}

// ElementText returns the innerText of the first element matching the
// selector, waiting for the element to appear first.
func (u *UI) ElementText(ctx context.Context, selector string) (string, error) {
	script := fmt.Sprintf("document.querySelector(%s).innerText;", strconv.Quote(selector))

	v, err := retry.UntilNoError(ctx, u.waiter, isJSError,
		func(ctx context.Context) (any, error) {
			return u.ch.EvalValue(ctx, script)
		})
	if err != nil {
		return "", fmt.Errorf("reading text of %q: %w", selector, err)
	}

	text, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("reading text of %q: got %T, want string", selector, v)
	}
	return text, nil
}

// ElementRect returns the bounding box of the first element matching the
// selector. Unlike ElementText it does not wait: a missing element is an
// immediate script error.
func (u *UI) ElementRect(ctx context.Context, selector string) (Rect, error) {
	script := fmt.Sprintf(
		"JSON.stringify(document.querySelector(%s).getBoundingClientRect());",
		strconv.Quote(selector))

	var rect Rect
	if err := u.evalInto(ctx, script, &rect); err != nil {
		return Rect{}, fmt.Errorf("reading rect of %q: %w", selector, err)
	}
	return rect, nil
}

// ScrollOffset returns the window's current scroll position.
func (u *UI) ScrollOffset(ctx context.Context) (Point, error) {
	const script = `JSON.stringify({"x": window.scrollX, "y": window.scrollY});`

	var p Point
	if err := u.evalInto(ctx, script, &p); err != nil {
		return Point{}, fmt.Errorf("reading scroll offset: %w", err)
	}
	return p, nil
}

// evalInto runs a JSON.stringify-style script and decodes the resulting
// string into v.
func (u *UI) evalInto(ctx context.Context, script string, v any) error {
	raw, err := u.ch.EvalValue(ctx, script)
	if err != nil {
		return err
	}
	s, ok := raw.(string)
	if !ok {
		return fmt.Errorf("got %T, want stringified JSON", raw)
	}
	return json.UnmarshalFromString(s, v)
}

// Screenshot captures the viewport as PNG, or just the element matching
// selector when it is non-empty. The clip is expressed in page coordinates,
// so the element rect is offset by the current scroll position.
func (u *UI) Screenshot(ctx context.Context, selector string) (image.Image, error) {
	cmd := cdp.Command{
		Method: "Page.captureScreenshot",
		Params: map[string]any{"format": "png"},
	}

	if selector != "" {
		rect, err := u.ElementRect(ctx, selector)
		if err != nil {
			return nil, err
		}
		scroll, err := u.ScrollOffset(ctx)
		if err != nil {
			return nil, err
		}
		cmd.Params["clip"] = map[string]any{
			"x":      rect.X + scroll.X,
			"y":      rect.Y + scroll.Y,
			"width":  rect.Width,
			"height": rect.Height,
			"scale":  1.0,
		}
	}

	resp, err := u.ch.RunCommand(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}

	var payload struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(resp.Result, &payload); err != nil {
		return nil, fmt.Errorf("decoding screenshot response: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot payload: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot image: %w", err)
	}
	return img, nil
}
