package pdf

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = "<!DOCTYPE html>\n<html><head><title>Q</title></head><body><p>hello</p></body></html>"

type fakeEngine struct {
	data  []byte
	err   error
	panic bool
	got   string
	opts  Options
	wait  bool
}

func (f *fakeEngine) PrintPDF(ctx context.Context, html string, opts Options) ([]byte, error) {
	f.got = html
	f.opts = opts
	if f.panic {
		panic("boom")
	}
	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.data, f.err
}

func TestGenerate_PDF(t *testing.T) {
	eng := &fakeEngine{data: []byte("%PDF-1.4")}
	res := NewGenerator(eng).Generate(context.Background(), doc, Options{Filename: "Q-2024-01"})

	assert.False(t, res.Fallback)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.Equal(t, "Q-2024-01.pdf", res.Filename)
	assert.Equal(t, []byte("%PDF-1.4"), res.Data)
	assert.Empty(t, res.Error)
	assert.Equal(t, "A4", eng.opts.Format)
	assert.Equal(t, DefaultTimeout, eng.opts.Timeout)
}

func TestGenerate_FallbackOnEngineError(t *testing.T) {
	res := NewGenerator(&fakeEngine{err: errors.New("chrome not found")}).Generate(context.Background(), doc, Options{})

	assert.True(t, res.Fallback)
	assert.Equal(t, "text/html", res.ContentType)
	assert.True(t, strings.HasPrefix(string(res.Data), "<!DOCTYPE html>"))
	assert.Equal(t, "chrome not found", res.Error)
	assert.Equal(t, "quotation.html", res.Filename)
}

func TestGenerate_FallbackWhenDisabled(t *testing.T) {
	res := NewGenerator(nil).Generate(context.Background(), doc, Options{})
	assert.True(t, res.Fallback)
	assert.Equal(t, ErrEngineDisabled.Error(), res.Error)
}

func TestGenerate_FallbackOnPanicAndEmpty(t *testing.T) {
	res := NewGenerator(&fakeEngine{panic: true}).Generate(context.Background(), doc, Options{})
	assert.True(t, res.Fallback)
	assert.Contains(t, res.Error, "boom")

	res = NewGenerator(&fakeEngine{}).Generate(context.Background(), doc, Options{})
	assert.True(t, res.Fallback)
}

func TestGenerate_Timeout(t *testing.T) {
	start := time.Now()
	res := NewGenerator(&fakeEngine{wait: true}).Generate(context.Background(), doc, Options{Timeout: 20 * time.Millisecond})
	assert.True(t, res.Fallback)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGenerate_WatermarkInFallback(t *testing.T) {
	res := NewGenerator(nil).Generate(context.Background(), doc, Options{Watermark: "DRAFT <1>"})
	out := string(res.Data)
	require.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `<div class="watermark">DRAFT &lt;1&gt;</div>`)
	assert.Less(t, strings.Index(out, ".watermark {"), strings.Index(out, "</head>"))
}

func TestOptions_PaperSize(t *testing.T) {
	w, h := Options{Format: "A4"}.PaperSize()
	assert.Equal(t, 8.27, w)
	assert.Equal(t, 11.69, h)

	w, h = Options{Format: "legal", Orientation: "landscape"}.PaperSize()
	assert.Equal(t, 14.0, w)
	assert.Equal(t, 8.5, h)

	assert.InDelta(t, 0.5906, mmToInches(15), 0.001)
}
