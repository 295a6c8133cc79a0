package dcc

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

// frameSpec describes one synthetic frame of the headless scene.
type frameSpec struct {
	width     int
	height    int
	camera    int
	render    bool
	renderer  int
	transform func(float64) float64
}

// colorTransform returns the per-channel transform a capture applies.
// Viewport captures and renders without use_colorspace write display
// values unchanged.
func colorTransform(colorSpace string, apply bool) func(float64) float64 {
	if !apply {
		return identity
	}
	switch colorSpace {
	case "Linear":
		return func(v float64) float64 { return math.Pow(v, 2.2) }
	case "ACEScg":
		return func(v float64) float64 { return 0.18 + 0.8*(v-0.18) }
	default:
		return identity
	}
}

func identity(v float64) float64 { return v }

// paint renders frame n of f.
func (f frameSpec) paint(n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))

	// Each camera looks at the gradient from a different hue; renders add
	// a renderer-dependent band so viewport and render captures differ.
	hue := float64(max(f.camera, 0)) * 0.25
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			u := float64(x+n*4) / float64(f.width)
			v := float64(y) / float64(f.height)
			r := 0.5 + 0.5*math.Sin(2*math.Pi*(u+hue))
			g := 0.5 + 0.5*math.Sin(2*math.Pi*(v+hue))
			b := 0.5 + 0.5*math.Cos(2*math.Pi*(u+v))
			if f.render && (y/8)%(f.renderer+2) == 0 {
				r, g, b = 1-r, 1-g, 1-b
			}
			img.SetRGBA(x, y, color.RGBA{
				R: channel(f.transform(r)),
				G: channel(f.transform(g)),
				B: channel(f.transform(b)),
				A: 0xff,
			})
		}
	}
	return img
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// writeImage encodes one frame to path in the format named by ext.
func writeImage(path string, ext Extension, f frameSpec) error {
	return writeFile(path, func(file *os.File) error {
		img := f.paint(0)
		switch ext.Name {
		case "PNG":
			return png.Encode(file, img)
		case "JPEG":
			return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
		default:
			return fmt.Errorf("%w: %q", ErrUnknownExtension, ext.Name)
		}
	})
}

// writeAnimation encodes frames as an animated GIF.
func writeAnimation(path string, f frameSpec, frames int) error {
	return writeFile(path, func(file *os.File) error {
		anim := &gif.GIF{LoopCount: 0}
		for n := range frames {
			src := f.paint(n)
			dst := image.NewPaletted(src.Bounds(), palette.Plan9)
			draw.FloydSteinberg.Draw(dst, src.Bounds(), src, image.Point{})
			anim.Image = append(anim.Image, dst)
			anim.Delay = append(anim.Delay, 4)
		}
		return gif.EncodeAll(file, anim)
	})
}

// writeFile creates path, including parent directories, and runs encode
// on it.
func writeFile(path string, encode func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	if err := encode(file); err != nil {
		file.Close()
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}
