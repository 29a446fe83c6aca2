package compositor

import (
	"math"

	"github.com/slipsnap/slipsnap/internal/scene"
)

// Тайминг анимаций фиксированный: состояние объекта — чистая функция
// (объект, момент времени), независимо от порядка вызовов рендера.
const (
	drawActiveMs = 1600 // фаза прорисовки контура
	drawHoldMs   = 700  // пауза с полным контуром перед рестартом

	pulsePeriodMs  = 1200
	pulseMinAlpha  = 0.45
	pulseAreaLimit = 0.35 // доля канвы, выше которой пульсация отключена
)

// animState — вычисленное состояние объекта на момент atMs.
type animState struct {
	alpha  float64 // множитель непрозрачности, 0..1
	reveal float64 // доля прорисованного контура, 0..1
	frame  int     // номер кадра для GifLoop
}

func stateAt(o *scene.Object, atMs int, canvasArea float64) animState {
	st := animState{alpha: 1.0, reveal: 1.0}
	if atMs < 0 {
		atMs = 0
	}

	switch o.Animation.Kind {
	case scene.AnimDraw:
		cycle := drawActiveMs + drawHoldMs
		t := atMs
		if o.Animation.Loop {
			t = atMs % cycle
		} else if t > cycle {
			t = cycle
		}
		st.reveal = easeInOutCubic(math.Min(1.0, float64(t)/float64(drawActiveMs)))

	case scene.AnimPulse:
		// Крупные объекты не пульсируют: мигание элемента на треть
		// экрана невыносимо для зрителя.
		w := o.Bounds.W * o.Scale
		h := o.Bounds.H * o.Scale
		if canvasArea > 0 && w*h > canvasArea*pulseAreaLimit {
			break
		}
		phase := 2 * math.Pi * float64(atMs%pulsePeriodMs) / float64(pulsePeriodMs)
		// В нуле цикла объект полностью непрозрачен.
		st.alpha = pulseMinAlpha + (1.0-pulseMinAlpha)*(0.5+0.5*math.Cos(phase))

	case scene.AnimGifLoop:
		st.frame = gifFrameAt(o.Animation, atMs)
	}
	return st
}

// CycleMs возвращает длительность полного цикла анимации объекта в
// миллисекундах. Ноль означает статичный объект.
func CycleMs(spec scene.AnimationSpec) int {
	switch spec.Kind {
	case scene.AnimDraw:
		return drawActiveMs + drawHoldMs
	case scene.AnimPulse:
		return pulsePeriodMs
	case scene.AnimGifLoop:
		return spec.DurationMs
	}
	return 0
}

// gifFrameAt выбирает кадр GIF по временной шкале: последний кадр,
// чье смещение не превышает позицию в цикле.
func gifFrameAt(spec scene.AnimationSpec, atMs int) int {
	if len(spec.Timeline) == 0 {
		return 0
	}
	t := atMs
	if spec.DurationMs > 0 {
		if spec.Loop {
			t = atMs % spec.DurationMs
		} else if t >= spec.DurationMs {
			t = spec.DurationMs - 1
		}
	}

	frame := spec.Timeline[0].Frame
	for _, entry := range spec.Timeline {
		if entry.OffsetMs > t {
			break
		}
		frame = entry.Frame
	}
	return frame
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// easeInOutCubic applies smooth easing function
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	p := -2*t + 2
	return 1 - p*p*p/2
}
