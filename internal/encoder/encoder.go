// Package encoder сохраняет результат композиции в файлы: PNG и JPEG
// для статики, GIF с квантованием палитры для анимации, MP4 через
// потоковую передачу сырых кадров в ffmpeg.
package encoder

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrBackendUnavailable — ffmpeg не найден или не запускается.
	ErrBackendUnavailable = errors.New("ffmpeg недоступен")
	// ErrUnsupportedFormat — формат не входит в поддерживаемый набор.
	ErrUnsupportedFormat = errors.New("неподдерживаемый формат экспорта")
)

// Format — целевой формат экспорта.
type Format string

const (
	FormatAuto Format = "auto"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
	FormatGIF  Format = "gif"
	FormatMP4  Format = "mp4"
)

// ParseFormat разбирает пользовательское имя формата.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "auto":
		return FormatAuto, nil
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "gif":
		return FormatGIF, nil
	case "mp4":
		return FormatMP4, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Animated reports whether the format holds more than one frame.
func (f Format) Animated() bool {
	return f == FormatGIF || f == FormatMP4
}

// Ext возвращает расширение файла с точкой.
func (f Format) Ext() string {
	return "." + string(f)
}

// EncodeStill сохраняет одиночный кадр. Формат auto здесь не
// принимается, выбор формата — обязанность вызывающего.
func EncodeStill(path string, img *image.RGBA, format Format, jpegQuality int) error {
	switch format {
	case FormatPNG, FormatJPEG:
	default:
		return fmt.Errorf("%w: %q для статичного кадра", ErrUnsupportedFormat, format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("директория вывода: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("создание файла: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatPNG:
		err = png.Encode(f, img)
	case FormatJPEG:
		if jpegQuality < 1 || jpegQuality > 100 {
			jpegQuality = 90
		}
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return fmt.Errorf("кодирование %s: %w", format, err)
	}
	return f.Sync()
}
