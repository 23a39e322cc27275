package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedType = errors.New("only jpeg, png and webp images are allowed")
	ErrTooLarge        = errors.New("image file too large")
	ErrDimensions      = errors.New("image dimensions out of range")
	ErrCorrupt         = errors.New("image could not be decoded")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type Options struct {
	MaxBytes  int64
	MinSide   int
	MaxSide   int
	MaxWidth  int
	MaxHeight int
	Quality   int
}

func DefaultOptions() Options {
	return Options{
		MaxBytes:  5 << 20,
		MinSide:   100,
		MaxSide:   10000,
		MaxWidth:  1920,
		MaxHeight: 1080,
		Quality:   80,
	}
}

type Processor struct {
	opts Options
}

func New(opts Options) *Processor {
	d := DefaultOptions()
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = d.MaxBytes
	}
	if opts.MinSide <= 0 {
		opts.MinSide = d.MinSide
	}
	if opts.MaxSide <= 0 {
		opts.MaxSide = d.MaxSide
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = d.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = d.MaxHeight
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = d.Quality
	}
	return &Processor{opts: opts}
}

func DetectType(data []byte) (string, bool) {
	ct := http.DetectContentType(data)
	return ct, allowedTypes[ct]
}

func (p *Processor) Process(data []byte) ([]byte, error) {
	if int64(len(data)) > p.opts.MaxBytes {
		return nil, ErrTooLarge
	}
	if _, ok := DetectType(data); !ok {
		return nil, ErrUnsupportedType
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrCorrupt
	}
	if !p.sideOK(cfg.Width) || !p.sideOK(cfg.Height) {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, cfg.Width, cfg.Height)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrCorrupt
	}
	dst := p.resize(src)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Processor) sideOK(n int) bool {
	return n >= p.opts.MinSide && n <= p.opts.MaxSide
}

func (p *Processor) resize(src image.Image) image.Image {
	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), p.opts.MaxWidth, p.opts.MaxHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
