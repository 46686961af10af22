package coverage

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
)

// Raster is the view of a coverage image the classifier needs: its size and
// the alpha channel of each pixel. Row 0 is the northernmost row.
type Raster interface {
	Width() int
	Height() int
	Alpha(x, y int) uint8
}

type imageRaster struct {
	img    image.Image
	bounds image.Rectangle
}

// FromImage adapts any decoded image to a Raster.
func FromImage(img image.Image) Raster {
	return imageRaster{img: img, bounds: img.Bounds()}
}

func (r imageRaster) Width() int  { return r.bounds.Dx() }
func (r imageRaster) Height() int { return r.bounds.Dy() }

func (r imageRaster) Alpha(x, y int) uint8 {
	_, _, _, a := r.img.At(r.bounds.Min.X+x, r.bounds.Min.Y+y).RGBA()
	return uint8(a >> 8)
}

// DecodePNG reads a PNG coverage raster.
func DecodePNG(r io.Reader) (Raster, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return FromImage(img), nil
}

// LoadPNG opens and decodes the PNG at path.
func LoadPNG(path string) (Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster: %w", err)
	}
	defer f.Close()
	return DecodePNG(f)
}
