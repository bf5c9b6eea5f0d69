package processor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"photohub/internal/models"
)

// Profile variant file names, in the order Render produces them.
const (
	ProfileOriginal      = "profile.png"
	ProfileSquare        = "profile-cropped-square.png"
	ProfileRounded       = "profile-cropped-rounded.png"
	ProfileLetters       = "profile-cropped-rounded-with-letters.png"
	ProfileBorder        = "profile-cropped-rounded-with-border.png"
	ProfileGradient      = "profile-cropped-rounded-with-gradient.png"
	ProfilePattern       = "profile-cropped-rounded-with-pattern.png"
	profileLettersText   = "OK"
	profileRingWidth     = 10
	profileStripeHeight  = 10
	profileLettersScale  = 0.7
	profileCapHeightRate = 0.72
)

var ProfileVariants = []string{
	ProfileOriginal, ProfileSquare, ProfileRounded, ProfileLetters,
	ProfileBorder, ProfileGradient, ProfilePattern,
}

type ProfileRenderer struct {
	font *truetype.Font
}

func NewProfileRenderer() (*ProfileRenderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("processor.NewProfileRenderer: parse font: %w", err)
	}
	return &ProfileRenderer{font: f}, nil
}

// Render writes every profile variant of src into dir and returns the file
// names in ProfileVariants order.
func (r *ProfileRenderer) Render(src, dir string) ([]string, error) {
	const op = "processor.Render"

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrProcessing, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}

	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side == 0 {
		return nil, fmt.Errorf("%s: %w: empty image", op, models.ErrProcessing)
	}

	square := imaging.CropCenter(img, side, side)
	rounded := circleMask(square)

	letters := imaging.Clone(rounded)
	veil := imaging.New(side, side, color.NRGBA{R: 255, A: 128})
	letters = imaging.Overlay(letters, veil, image.Pt(0, 0), 1)
	if err := r.drawCentered(letters, profileLettersText, float64(side)*profileLettersScale); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrProcessing, err)
	}

	border := imaging.Clone(rounded)
	drawRing(border, func(x, y int) color.NRGBA {
		return color.NRGBA{R: 255, G: 255, A: 255}
	})

	gradient := imaging.Clone(rounded)
	drawRing(gradient, func(x, y int) color.NRGBA {
		t := float64(x) / float64(side)
		return color.NRGBA{R: uint8(255 * (1 - t)), B: uint8(255 * t), A: 255}
	})

	stripes := imaging.New(side, side, color.White)
	for y := 0; y < side; y++ {
		if (y/profileStripeHeight)%2 == 1 {
			for x := 0; x < side; x++ {
				stripes.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
	}
	pattern := circleMask(imaging.Overlay(rounded, stripes, image.Pt(0, 0), 0.5))

	outputs := []image.Image{img, square, rounded, letters, border, gradient, pattern}
	for i, name := range ProfileVariants {
		if err := imaging.Save(outputs[i], filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("%s: %w: save %s: %v", op, models.ErrStorage, name, err)
		}
	}
	return append([]string(nil), ProfileVariants...), nil
}

func (r *ProfileRenderer) drawCentered(dst *image.NRGBA, text string, size float64) error {
	face := truetype.NewFace(r.font, &truetype.Options{Size: size, DPI: 72})
	defer face.Close()

	side := dst.Bounds().Dx()
	width := font.MeasureString(face, text)
	capHeight := fixed.Int26_6(size * profileCapHeightRate * 64)
	pt := fixed.Point26_6{
		X: (fixed.I(side) - width) / 2,
		Y: (fixed.I(side) + capHeight) / 2,
	}

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(r.font)
	c.SetFontSize(size)
	c.SetClip(dst.Bounds())
	c.SetDst(dst)
	c.SetSrc(image.NewUniform(color.NRGBA{R: 255, G: 255, A: 255}))
	c.SetHinting(font.HintingNone)
	_, err := c.DrawString(text, pt)
	return err
}

// circleMask clears every pixel outside the inscribed circle.
func circleMask(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	side := out.Bounds().Dx()
	radius := float64(side) / 2
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			if distance(x, y, radius) > radius {
				out.SetNRGBA(x, y, color.NRGBA{})
			}
		}
	}
	return out
}

// drawRing paints a ring just inside the circle edge.
func drawRing(img *image.NRGBA, colorAt func(x, y int) color.NRGBA) {
	side := img.Bounds().Dx()
	outer := float64(side) / 2
	ring := float64(profileRingWidth)
	if ring > outer {
		ring = outer
	}
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			d := distance(x, y, outer)
			if d <= outer && d >= outer-ring {
				img.SetNRGBA(x, y, colorAt(x, y))
			}
		}
	}
}

func distance(x, y int, center float64) float64 {
	dx := float64(x) + 0.5 - center
	dy := float64(y) + 0.5 - center
	return math.Hypot(dx, dy)
}
