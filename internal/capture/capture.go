package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/slipsnap/slipsnap/internal/display"
)

var (
	// ErrCaptureDenied — ОС отказала в доступе к экрану.
	ErrCaptureDenied = errors.New("нет доступа к захвату экрана")
	// ErrRegionOutOfBounds — регион не пересекается ни с одним монитором.
	ErrRegionOutOfBounds = errors.New("регион захвата вне границ мониторов")
)

// Grabber абстрагирует низкоуровневый захват пикселей, чтобы логику
// выше можно было тестировать без реального экрана.
type Grabber interface {
	CaptureRect(rect image.Rectangle) (*image.RGBA, error)
}

// ScreenGrabber captures from the OS through the screenshot library.
type ScreenGrabber struct{}

func (ScreenGrabber) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		// Библиотека не различает причины; для захвата экрана отказ
		// почти всегда означает отсутствие разрешения у процесса.
		return nil, fmt.Errorf("%w: %v", ErrCaptureDenied, err)
	}
	return img, nil
}

// Session — одноразовый агрегат захвата: топология на момент старта,
// регион и снимок. После передачи в редактор не переиспользуется.
type Session struct {
	Topology *display.Topology
	Region   display.Rect
	Still    *image.RGBA
}

// CaptureStill делает одиночный снимок логического региона.
// Если регион не пересекает ни один монитор, он один раз прижимается
// к ближайшему монитору и захват повторяется; после этого — ошибка.
func CaptureStill(topo *display.Topology, g Grabber, region display.Rect) (*Session, error) {
	phys, ok := topo.PhysicalRegion(region)
	if !ok || phys.Empty() {
		return nil, ErrRegionOutOfBounds
	}

	clamped, err := clampToMonitors(topo, phys)
	if err != nil {
		return nil, err
	}

	img, err := g.CaptureRect(clamped)
	if err != nil {
		return nil, err
	}

	logical := region
	if clamped != phys {
		if lr, rerr := topo.RegionAcrossMonitors(clamped); rerr == nil {
			logical = lr
		}
	}
	return &Session{Topology: topo, Region: logical, Still: img}, nil
}

// clampToMonitors прижимает физический прямоугольник к видимой области.
// Одна попытка восстановления, без тихих повторов.
func clampToMonitors(topo *display.Topology, phys image.Rectangle) (image.Rectangle, error) {
	var visible image.Rectangle
	for i, m := range topo.Monitors() {
		if i == 0 {
			visible = phys.Intersect(m.PhysicalBounds)
			continue
		}
		visible = visible.Union(phys.Intersect(m.PhysicalBounds))
	}
	if !visible.Empty() {
		return visible, nil
	}

	near := topo.NearestMonitor(phys.Min)
	adjusted := clampRectInto(phys, near.PhysicalBounds)
	if adjusted.Empty() {
		return image.Rectangle{}, ErrRegionOutOfBounds
	}
	return adjusted, nil
}

func clampRectInto(r, bounds image.Rectangle) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	if w > bounds.Dx() {
		w = bounds.Dx()
	}
	if h > bounds.Dy() {
		h = bounds.Dy()
	}
	x := r.Min.X
	y := r.Min.Y
	if x < bounds.Min.X {
		x = bounds.Min.X
	}
	if x+w > bounds.Max.X {
		x = bounds.Max.X - w
	}
	if y < bounds.Min.Y {
		y = bounds.Min.Y
	}
	if y+h > bounds.Max.Y {
		y = bounds.Max.Y - h
	}
	return image.Rect(x, y, x+w, y+h)
}
