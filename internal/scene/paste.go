package scene

import (
	"github.com/slipsnap/slipsnap/internal/display"
	"github.com/slipsnap/slipsnap/internal/payload"
)

// Paste вставляет разобранный payload в сцену. Многокадровый источник
// становится GIF-объектом: шкала кадров копируется из источника один в
// один, без схлопывания до первого кадра. Одиночный кадр становится
// обычным растровым объектом без анимации.
func (s *Scene) Paste(p *payload.Payload, at display.Point) (string, error) {
	if p == nil || len(p.Frames) == 0 {
		return "", payload.ErrCorruptPayload
	}

	first := p.Frames[0].Bounds()
	bounds := display.Rect{
		X: at.X,
		Y: at.Y,
		W: float64(first.Dx()),
		H: float64(first.Dy()),
	}

	if !p.Animated() {
		return s.AddRaster(bounds, p.Frames[0]), nil
	}

	timeline := make([]TimelineEntry, len(p.Frames))
	offset := 0
	for i := range p.Frames {
		timeline[i] = TimelineEntry{OffsetMs: offset, Frame: i}
		offset += p.DelaysMs[i]
	}
	return s.AddGif(bounds, p.Frames, timeline, p.DurationMs()), nil
}
