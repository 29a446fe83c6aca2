package library

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
)

// SmartGrid подбирает сетку, близкую к квадратной, под n элементов.
func SmartGrid(n int) (cols, rows int) {
	if n <= 0 {
		return 0, 0
	}
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	rows = int(math.Ceil(float64(n) / float64(cols)))
	return cols, rows
}

// ComposeCollage собирает снимки в одну картинку 16:9 шириной
// targetWidth. Каждый снимок вписывается в свою ячейку с сохранением
// пропорций и центрируется.
func ComposeCollage(paths []string, targetWidth int) (*image.RGBA, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("нет снимков для коллажа")
	}
	if targetWidth < 64 {
		targetWidth = 1280
	}

	cols, rows := SmartGrid(len(paths))
	targetHeight := targetWidth * 9 / 16
	cellW := targetWidth / cols
	cellH := targetHeight / rows

	canvas := image.NewRGBA(image.Rect(0, 0, cellW*cols, cellH*rows))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.NRGBA{R: 30, G: 30, B: 30, A: 255}), image.Point{}, draw.Src)

	i := 0
	for r := 0; r < rows && i < len(paths); r++ {
		for c := 0; c < cols && i < len(paths); c++ {
			img, err := loadImage(paths[i])
			if err != nil {
				return nil, fmt.Errorf("снимок %s: %w", paths[i], err)
			}

			b := img.Bounds()
			scale := math.Min(float64(cellW)/float64(b.Dx()), float64(cellH)/float64(b.Dy()))
			if scale > 1 {
				scale = 1
			}
			w := int(float64(b.Dx()) * scale)
			h := int(float64(b.Dy()) * scale)

			x := c*cellW + (cellW-w)/2
			y := r*cellH + (cellH-h)/2
			xdraw.CatmullRom.Scale(canvas, image.Rect(x, y, x+w, y+h), img, b, xdraw.Over, nil)
			i++
		}
	}
	return canvas, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
