// Package processor renders photo filters and profile variants with
// disintegration/imaging.
package processor

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path"
	"strings"

	"github.com/disintegration/imaging"

	"photohub/internal/models"
)

const (
	OpRotate    = "rotate"
	OpResize    = "resize"
	OpCrop      = "crop"
	OpGrayscale = "grayscale"
	OpFlip      = "flip"
	OpFlop      = "flop"
	OpNegate    = "negate"
	OpTint      = "tint"
	OpReformat  = "reformat"
)

var supported = map[string]bool{
	OpRotate: true, OpResize: true, OpCrop: true, OpGrayscale: true, OpFlip: true,
	OpFlop: true, OpNegate: true, OpTint: true, OpReformat: true,
}

func Supported(name string) bool { return supported[name] }

const (
	defaultAngle  = 90.0
	defaultFormat = "png"
)

// Operation is one named transform with its parameters. Pointer fields are
// optional and fall back to defaults.
type Operation struct {
	Name   string
	Angle  *float64
	Width  int
	Height int
	Left   int
	Top    int
	R      *int
	G      *int
	B      *int
	Format string
}

func (op Operation) format() string {
	if op.Format == "" {
		return defaultFormat
	}
	return strings.ToLower(strings.TrimPrefix(op.Format, "."))
}

// DerivedPath names the output of op applied to the asset at url:
// <dir>/<base>-<op><ext>, with the new extension for reformat.
func DerivedPath(url string, op Operation) string {
	dir, file := path.Split(url)
	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)
	if op.Name == OpReformat {
		ext = "." + op.format()
	}
	return dir + base + "-" + op.Name + ext
}

type Imaging struct{}

func New() *Imaging { return &Imaging{} }

func (p *Imaging) Metadata(src string) (models.ImageMetadata, error) {
	const op = "processor.Metadata"

	f, err := os.Open(src)
	if err != nil {
		return models.ImageMetadata{}, fmt.Errorf("%s: %w: %v", op, models.ErrProcessing, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return models.ImageMetadata{}, fmt.Errorf("%s: %w: %v", op, models.ErrProcessing, err)
	}
	info, err := f.Stat()
	if err != nil {
		return models.ImageMetadata{}, fmt.Errorf("%s: %w: %v", op, models.ErrProcessing, err)
	}
	return models.ImageMetadata{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		Size:   info.Size(),
	}, nil
}

// Transform reads src, applies op and writes the result to dst. The output
// format follows dst's extension.
func (p *Imaging) Transform(src, dst string, op Operation) error {
	const fn = "processor.Transform"

	if !Supported(op.Name) {
		return fmt.Errorf("%s: %w: %q", fn, models.ErrUnsupportedOperation, op.Name)
	}
	if _, err := imaging.FormatFromFilename(dst); err != nil {
		return fmt.Errorf("%s: %w: output %s: %v", fn, models.ErrProcessing, dst, err)
	}

	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", fn, models.ErrProcessing, err)
	}

	out, err := apply(img, op)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", fn, models.ErrProcessing, err)
	}

	if err := imaging.Save(out, dst); err != nil {
		return fmt.Errorf("%s: %w: %v", fn, models.ErrProcessing, err)
	}
	return nil
}

func apply(img image.Image, op Operation) (image.Image, error) {
	switch op.Name {
	case OpRotate:
		angle := defaultAngle
		if op.Angle != nil {
			angle = *op.Angle
		}
		// imaging rotates counter-clockwise; the API angle is clockwise.
		return imaging.Rotate(img, -angle, color.Black), nil
	case OpResize:
		if op.Width < 0 || op.Height < 0 || (op.Width == 0 && op.Height == 0) {
			return nil, fmt.Errorf("resize needs a positive width or height, got %dx%d", op.Width, op.Height)
		}
		return imaging.Resize(img, op.Width, op.Height, imaging.Lanczos), nil
	case OpCrop:
		return crop(img, op)
	case OpGrayscale:
		return imaging.Grayscale(img), nil
	case OpFlip:
		return imaging.FlipV(img), nil
	case OpFlop:
		return imaging.FlipH(img), nil
	case OpNegate:
		return imaging.Invert(img), nil
	case OpTint:
		return tint(img, channel(op.R, 255), channel(op.G, 0), channel(op.B, 0)), nil
	case OpReformat:
		if _, err := imaging.FormatFromExtension(op.format()); err != nil {
			return nil, fmt.Errorf("reformat to %q: %v", op.format(), err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("unknown operation %q", op.Name)
}

func crop(img image.Image, op Operation) (image.Image, error) {
	if op.Width <= 0 || op.Height <= 0 {
		return nil, fmt.Errorf("crop needs a positive width and height, got %dx%d", op.Width, op.Height)
	}
	if op.Left < 0 || op.Top < 0 {
		return nil, fmt.Errorf("crop offset must not be negative, got %d,%d", op.Left, op.Top)
	}
	b := img.Bounds()
	rect := image.Rect(op.Left, op.Top, op.Left+op.Width, op.Top+op.Height).Add(b.Min)
	if !rect.In(b) {
		return nil, fmt.Errorf("crop area %v outside image bounds %v", rect, b)
	}
	return imaging.Crop(img, rect), nil
}

func channel(v *int, def int) uint8 {
	if v == nil {
		return uint8(def)
	}
	switch {
	case *v < 0:
		return 0
	case *v > 255:
		return 255
	}
	return uint8(*v)
}

// tint keeps each pixel's luminance and recolours it towards (r, g, b).
func tint(img image.Image, r, g, b uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		lum := (299*float64(c.R) + 587*float64(c.G) + 114*float64(c.B)) / 1000
		return color.NRGBA{
			R: uint8(lum * float64(r) / 255),
			G: uint8(lum * float64(g) / 255),
			B: uint8(lum * float64(b) / 255),
			A: c.A,
		}
	})
}
