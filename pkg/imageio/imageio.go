// Package imageio loads and stores raster images from common file
// formats. Samples are scaled to [0, 1] on load and back to the full
// sample range on store. Gray images become single-channel rasters,
// color images three-channel ones.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"imagefusion/pkg/raster"
)

// Load reads the image file at path and converts it to a raster image.
// The format is chosen by file extension: .tif/.tiff, .png, .jpg/.jpeg.
func Load(path string) (*raster.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tif", ".tiff":
		img, err = tiff.Decode(file)
	case ".png":
		img, err = png.Decode(file)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(file)
	default:
		return nil, fmt.Errorf("imageio: unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("imageio: decoding %s: %w", path, err)
	}
	return FromImage(img), nil
}

// Save writes the raster image to path, choosing the codec by file
// extension. TIFF files are deflate-compressed. Only single- and
// three-channel rasters can be stored.
func Save(path string, img *raster.Image) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".tif", ".tiff", ".png", ".jpg", ".jpeg":
	default:
		return fmt.Errorf("imageio: unsupported file extension %q", ext)
	}

	m, err := ToImage(img)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	switch ext {
	case ".tif", ".tiff":
		err = tiff.Encode(file, m, &tiff.Options{Compression: tiff.Deflate})
	case ".png":
		err = png.Encode(file, m)
	default:
		err = jpeg.Encode(file, m, &jpeg.Options{Quality: 95})
	}
	if err != nil {
		return fmt.Errorf("imageio: encoding %s: %w", path, err)
	}
	return nil
}

// FromImage converts a decoded image to a raster image with samples in
// [0, 1]. Grayscale images produce one channel, everything else three.
func FromImage(m image.Image) *raster.Image {
	bounds := m.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if isGray(m) {
		out := raster.New(w, h, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, _, _, _ := m.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				out.Set(x, y, 0, float64(r)/65535)
			}
		}
		return out
	}

	out := raster.New(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := m.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out.Set(x, y, 0, float64(r)/65535)
			out.Set(x, y, 1, float64(g)/65535)
			out.Set(x, y, 2, float64(b)/65535)
		}
	}
	return out
}

// ToImage converts a raster image with samples in [0, 1] back to a
// 16-bit image. Values outside [0, 1] are clipped.
func ToImage(img *raster.Image) (image.Image, error) {
	w := img.Width()
	h := img.Height()

	switch img.Channels() {
	case 1:
		out := image.NewGray16(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetGray16(x, y, color.Gray16{Y: quantize(img.At(x, y, 0))})
			}
		}
		return out, nil
	case 3:
		out := image.NewRGBA64(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetRGBA64(x, y, color.RGBA64{
					R: quantize(img.At(x, y, 0)),
					G: quantize(img.At(x, y, 1)),
					B: quantize(img.At(x, y, 2)),
					A: 65535,
				})
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("imageio: cannot encode %d-channel image", img.Channels())
	}
}

func quantize(v float64) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 65535
	}
	return uint16(v*65535 + 0.5)
}

func isGray(m image.Image) bool {
	switch m.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return m.ColorModel() == color.GrayModel || m.ColorModel() == color.Gray16Model
}
