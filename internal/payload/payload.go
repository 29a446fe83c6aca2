// Package payload разбирает содержимое буфера обмена и библиотеки:
// одиночные изображения и многокадровые анимированные GIF с
// покадровыми задержками. Единственный потребитель — вставка в сцену.
package payload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrCorruptPayload — данные не соответствуют заявленному формату.
var ErrCorruptPayload = errors.New("поврежденные данные вставки")

// Payload — нормализованный результат разбора: один или несколько
// кадров RGBA плюс покадровые задержки (для одиночного кадра задержек
// нет).
type Payload struct {
	Frames   []*image.RGBA
	DelaysMs []int
}

// Animated reports whether the payload carries more than one frame.
func (p *Payload) Animated() bool { return len(p.Frames) > 1 }

// DurationMs — суммарная длительность всех кадров.
func (p *Payload) DurationMs() int {
	total := 0
	for _, d := range p.DelaysMs {
		total += d
	}
	return total
}

// Parse разбирает байты по MIME-типу. GIF с k>1 кадрами сохраняет все
// кадры и задержки как есть: анимация никогда молча не схлопывается
// до первого кадра.
func Parse(data []byte, mimeType string) (*Payload, error) {
	switch mimeType {
	case "image/gif":
		return parseGIF(data)
	case "image/png", "image/jpeg", "":
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
		}
		return &Payload{Frames: []*image.RGBA{toRGBA(img)}}, nil
	default:
		return nil, fmt.Errorf("%w: неподдерживаемый тип %q", ErrCorruptPayload, mimeType)
	}
}

func parseGIF(data []byte) (*Payload, error) {
	if !bytes.HasPrefix(data, []byte("GIF87a")) && !bytes.HasPrefix(data, []byte("GIF89a")) {
		return nil, fmt.Errorf("%w: нет сигнатуры GIF", ErrCorruptPayload)
	}
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: GIF без кадров", ErrCorruptPayload)
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}

	p := &Payload{
		Frames:   make([]*image.RGBA, 0, len(g.Image)),
		DelaysMs: make([]int, 0, len(g.Image)),
	}

	// Кадры GIF могут быть частичными: каждый накладывается на
	// предыдущий композит.
	canvas := image.NewRGBA(bounds)
	for i, frame := range g.Image {
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		cp := image.NewRGBA(bounds)
		copy(cp.Pix, canvas.Pix)
		p.Frames = append(p.Frames, cp)

		delayMs := 100
		if i < len(g.Delay) {
			delayMs = g.Delay[i] * 10 // GIF хранит сотые доли секунды
		}
		if delayMs <= 0 {
			delayMs = 100
		}
		p.DelaysMs = append(p.DelaysMs, delayMs)
	}
	return p, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
