package display

import (
	"github.com/kbinani/screenshot"
)

// Enumerate опрашивает ОС и строит снимок топологии мониторов.
// Масштабы берутся из scales (индекс монитора -> DPI scale); для
// мониторов без записи используется 1.0. Снимок не обновляется сам:
// новая сессия захвата делает новую энумерацию.
func Enumerate(scales map[int]float64) (*Topology, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrTopologyUnavailable
	}

	monitors := make([]Monitor, 0, n)
	for i := 0; i < n; i++ {
		scale := 1.0
		if s, ok := scales[i]; ok && s > 0 {
			scale = s
		}
		monitors = append(monitors, Monitor{
			ID:             i,
			PhysicalBounds: screenshot.GetDisplayBounds(i),
			DPIScale:       scale,
			// Дисплей 0 у библиотеки всегда главный
			Primary: i == 0,
		})
	}
	return New(monitors)
}
