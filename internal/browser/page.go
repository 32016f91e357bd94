package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Page wraps a browser tab with per-operation timeouts. Methods block until
// the operation settles or the timeout elapses.
type Page struct {
	ctx     context.Context
	timeout time.Duration
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p == nil || p.ctx == nil {
		return ErrNotStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(opCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads the URL and waits for the document to be ready.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body")); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until the CSS selector matches a visible node.
func (p *Page) WaitVisible(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("browser: wait for %s: %w", selector, err)
	}
	return nil
}

// Click waits for the CSS selector and clicks the first match.
func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: click %s: %w", selector, err)
	}
	return nil
}

// ClickXPath clicks the first node matched by an XPath expression. Used for
// text-content matches CSS selectors cannot express.
func (p *Page) ClickXPath(ctx context.Context, expression string) error {
	if err := p.run(ctx,
		chromedp.WaitVisible(expression, chromedp.BySearch),
		chromedp.Click(expression, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("browser: click %s: %w", expression, err)
	}
	return nil
}

// Fill clears the matched input and types the value.
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	if err := p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: fill %s: %w", selector, err)
	}
	return nil
}

// HTML returns the serialized document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: read document: %w", err)
	}
	return html, nil
}

// Title returns the current document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("browser: read title: %w", err)
	}
	return title, nil
}
