package encoder

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoders for dataset images
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// ImageNet normalization constants used by DeiT.
var (
	ImageNetDefaultMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetDefaultSTD  = [3]float32{0.229, 0.224, 0.225}
)

// LoadImage decodes a JPEG, PNG or WebP file and flattens any alpha channel
// onto white.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // dataset paths are user-provided by design
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return Composite(img), nil
}

// LoadImages loads images concurrently, at most limit at a time
// (limit <= 0 means no limit). Results keep the order of paths.
func LoadImages(ctx context.Context, paths []string, limit int) ([]image.Image, error) {
	images := make([]image.Image, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := LoadImage(path)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// Composite returns an image with the alpha channel removed by drawing over
// a white background.
func Composite(img image.Image) image.Image {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), &image.Uniform{color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	return dst
}

// Resize scales img to size x size with bilinear interpolation.
func Resize(img image.Image, size int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Rect, img, img.Bounds(), draw.Over, nil)
	return dst
}

// Normalize rescales pixels to [0, 1], normalizes them with mean and std and
// returns them channel-first: all red values, then green, then blue.
func Normalize(img image.Image, mean, std [3]float32) []float32 {
	bounds := img.Bounds()
	plane := bounds.Dx() * bounds.Dy()
	out := make([]float32, 3*plane)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			for c, v := range [3]uint32{r, g, b} {
				out[c*plane+i] = (float32(v>>8)/255.0 - mean[c]) / std[c]
			}
			i++
		}
	}
	return out
}

// PixelValues resizes and normalizes a batch of images into the DeiT input
// layout [batch, 3, size, size].
func PixelValues(images []image.Image, size int) []float32 {
	per := 3 * size * size
	out := make([]float32, len(images)*per)
	for b, img := range images {
		copy(out[b*per:], Normalize(Resize(img, size), ImageNetDefaultMean, ImageNetDefaultSTD))
	}
	return out
}
