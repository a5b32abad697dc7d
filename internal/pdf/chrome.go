package pdf

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Engine turns a complete HTML document into PDF bytes.
type Engine interface {
	PrintPDF(ctx context.Context, html string, opts Options) ([]byte, error)
}

// ChromeEngine prints through a headless Chrome started per call.
type ChromeEngine struct {
	// ExecPath overrides Chrome discovery on PATH.
	ExecPath string
}

const waitFontsJS = `document.fonts.ready.then(() => true)`

// every image resolves on load, error or after the per-image timeout
const waitImagesJS = `Promise.all(Array.from(document.images).map(img => img.complete ? true :
  new Promise(resolve => {
    img.addEventListener('load', () => resolve(true));
    img.addEventListener('error', () => resolve(false));
    setTimeout(() => resolve(false), %d);
  }))).then(() => true)`

func (e ChromeEngine) PrintPDF(ctx context.Context, html string, opts Options) ([]byte, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.DisableGPU, chromedp.NoSandbox)
	if e.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(e.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	width, height := opts.PaperSize()
	awaitPromise := func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}

	var fontsReady, imagesReady bool
	var out []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.Evaluate(waitFontsJS, &fontsReady, awaitPromise),
		chromedp.Evaluate(fmt.Sprintf(waitImagesJS, ImageTimeout.Milliseconds()), &imagesReady, awaitPromise),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.PrintToPDF().
				WithPaperWidth(width).
				WithPaperHeight(height).
				WithMarginTop(mmToInches(opts.MarginTop)).
				WithMarginRight(mmToInches(opts.MarginRight)).
				WithMarginBottom(mmToInches(opts.MarginBottom)).
				WithMarginLeft(mmToInches(opts.MarginLeft)).
				WithScale(opts.Scale).
				WithPrintBackground(opts.PrintBackground).
				WithPreferCSSPageSize(false)
			if opts.HeaderTemplate != "" || opts.FooterTemplate != "" {
				params = params.WithDisplayHeaderFooter(true).
					WithHeaderTemplate(opts.HeaderTemplate).
					WithFooterTemplate(opts.FooterTemplate)
			}
			data, _, err := params.Do(ctx)
			if err != nil {
				return fmt.Errorf("print to pdf: %w", err)
			}
			out = data
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}
