package payload

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// ImportFile загружает файл для вставки в сцену: изображения и GIF —
// напрямую, PDF — первой страницей, отрисованной в указанном DPI.
func ImportFile(path string, dpi int) (*Payload, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gif":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return Parse(data, "image/gif")
	case ".png":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return Parse(data, "image/png")
	case ".jpg", ".jpeg":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return Parse(data, "image/jpeg")
	case ".pdf":
		return importPDF(path, dpi)
	default:
		return nil, fmt.Errorf("%w: неподдерживаемое расширение %q", ErrCorruptPayload, ext)
	}
}

func importPDF(path string, dpi int) (*Payload, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%w: PDF без страниц", ErrCorruptPayload)
	}
	if dpi <= 0 {
		dpi = 150
	}
	img, err := doc.ImageDPI(0, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("ошибка рендеринга страницы PDF: %w", err)
	}

	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return &Payload{Frames: []*image.RGBA{out}}, nil
}
