package display

import (
	"errors"
	"image"
	"math"
)

// ErrTopologyUnavailable возвращается, когда ОС не сообщила ни одного
// монитора. Пустой список никогда не возвращается молча: для захвата
// это фатальная ситуация.
var ErrTopologyUnavailable = errors.New("не удалось получить список мониторов")

// Monitor is an immutable snapshot of one physical display taken at
// enumeration time. PhysicalBounds is in device pixels in the virtual
// desktop coordinate space (origins can be negative).
type Monitor struct {
	ID             int
	PhysicalBounds image.Rectangle
	DPIScale       float64
	Primary        bool
}

// Point — точка в логическом (DPI-независимом) пространстве координат.
type Point struct {
	X, Y float64
}

// Rect — прямоугольник в логическом пространстве координат.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Rect) union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x0 := math.Min(r.X, o.X)
	y0 := math.Min(r.Y, o.Y)
	x1 := math.Max(r.X+r.W, o.X+o.W)
	y1 := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Topology maps between physical pixels and one logical canvas space.
// The anchor scale is fixed for the lifetime of the instance, so two
// points on different monitors always land in the same logical space
// for one capture session.
type Topology struct {
	monitors    []Monitor
	origins     []Point // логическое начало каждого монитора
	anchorScale float64
}

// New builds a topology from an enumerated monitor set. The monitor with
// the highest DPI scale is used as the canonical anchor for laying the
// monitors out in logical space.
func New(monitors []Monitor) (*Topology, error) {
	if len(monitors) == 0 {
		return nil, ErrTopologyUnavailable
	}

	anchor := 1.0
	virtualMin := monitors[0].PhysicalBounds.Min
	for _, m := range monitors {
		if m.DPIScale > anchor {
			anchor = m.DPIScale
		}
		if m.PhysicalBounds.Min.X < virtualMin.X {
			virtualMin.X = m.PhysicalBounds.Min.X
		}
		if m.PhysicalBounds.Min.Y < virtualMin.Y {
			virtualMin.Y = m.PhysicalBounds.Min.Y
		}
	}

	t := &Topology{
		monitors:    append([]Monitor(nil), monitors...),
		origins:     make([]Point, len(monitors)),
		anchorScale: anchor,
	}
	for i, m := range monitors {
		t.origins[i] = Point{
			X: float64(m.PhysicalBounds.Min.X-virtualMin.X) / anchor,
			Y: float64(m.PhysicalBounds.Min.Y-virtualMin.Y) / anchor,
		}
	}
	return t, nil
}

// Monitors returns the snapshot the topology was built from.
func (t *Topology) Monitors() []Monitor {
	return append([]Monitor(nil), t.monitors...)
}

// Primary returns the primary monitor, falling back to the first one.
func (t *Topology) Primary() Monitor {
	for _, m := range t.monitors {
		if m.Primary {
			return m
		}
	}
	return t.monitors[0]
}

// MonitorAt находит монитор, содержащий физическую точку.
func (t *Topology) MonitorAt(p image.Point) (Monitor, bool) {
	for _, m := range t.monitors {
		if p.In(m.PhysicalBounds) {
			return m, true
		}
	}
	return Monitor{}, false
}

// NearestMonitor returns the monitor whose bounds are closest to the
// physical point. Used when a selection edge lands in the dead zone
// between displays.
func (t *Topology) NearestMonitor(p image.Point) Monitor {
	best := t.monitors[0]
	bestDist := math.Inf(1)
	for _, m := range t.monitors {
		d := rectDistance(m.PhysicalBounds, p)
		if d < bestDist {
			bestDist = d
			best = m
		}
	}
	return best
}

func rectDistance(r image.Rectangle, p image.Point) float64 {
	dx := 0
	if p.X < r.Min.X {
		dx = r.Min.X - p.X
	} else if p.X >= r.Max.X {
		dx = p.X - r.Max.X + 1
	}
	dy := 0
	if p.Y < r.Min.Y {
		dy = r.Min.Y - p.Y
	} else if p.Y >= r.Max.Y {
		dy = p.Y - r.Max.Y + 1
	}
	return float64(dx*dx + dy*dy)
}

func (t *Topology) originOf(mon Monitor) Point {
	for i, m := range t.monitors {
		if m.ID == mon.ID {
			return t.origins[i]
		}
	}
	return Point{}
}

// ToLogical переводит физическую точку монитора в логические координаты.
// Чистая функция: результат зависит только от топологии и аргументов.
func (t *Topology) ToLogical(p image.Point, mon Monitor) Point {
	o := t.originOf(mon)
	return Point{
		X: float64(p.X-mon.PhysicalBounds.Min.X)/mon.DPIScale + o.X,
		Y: float64(p.Y-mon.PhysicalBounds.Min.Y)/mon.DPIScale + o.Y,
	}
}

// ToPhysical is the inverse of ToLogical for the same monitor; the pair
// round-trips within one physical pixel.
func (t *Topology) ToPhysical(p Point, mon Monitor) image.Point {
	o := t.originOf(mon)
	return image.Point{
		X: mon.PhysicalBounds.Min.X + int(math.Round((p.X-o.X)*mon.DPIScale)),
		Y: mon.PhysicalBounds.Min.Y + int(math.Round((p.Y-o.Y)*mon.DPIScale)),
	}
}

// RegionAcrossMonitors переводит физический прямоугольник выделения в
// логический. Когда выделение пересекает мониторы с разными масштабами,
// каждый кусок конвертируется по масштабу своего монитора, и логические
// под-прямоугольники сшиваются. Единый масштаб на весь прямоугольник НЕ
// применяется — иначе на границе мониторов появляется видимый сдвиг.
func (t *Topology) RegionAcrossMonitors(phys image.Rectangle) (Rect, error) {
	var out Rect
	found := false
	for _, m := range t.monitors {
		sub := phys.Intersect(m.PhysicalBounds)
		if sub.Empty() {
			continue
		}
		tl := t.ToLogical(sub.Min, m)
		br := t.ToLogical(sub.Max, m)
		out = out.union(Rect{X: tl.X, Y: tl.Y, W: br.X - tl.X, H: br.Y - tl.Y})
		found = true
	}
	if !found {
		return Rect{}, ErrTopologyUnavailable
	}
	return out, nil
}

// PhysicalRegion возвращает физический прямоугольник, покрывающий
// логический. Обратная операция к RegionAcrossMonitors, тоже по кускам.
func (t *Topology) PhysicalRegion(lr Rect) (image.Rectangle, bool) {
	var out image.Rectangle
	found := false
	for i, m := range t.monitors {
		monLogical := t.logicalBounds(i)
		sub := intersectRect(lr, monLogical)
		if sub.Empty() {
			continue
		}
		tl := t.ToPhysical(Point{X: sub.X, Y: sub.Y}, m)
		br := t.ToPhysical(Point{X: sub.X + sub.W, Y: sub.Y + sub.H}, m)
		r := image.Rect(tl.X, tl.Y, br.X, br.Y)
		if !found {
			out = r
			found = true
		} else {
			out = out.Union(r)
		}
	}
	return out, found
}

func (t *Topology) logicalBounds(i int) Rect {
	m := t.monitors[i]
	o := t.origins[i]
	return Rect{
		X: o.X,
		Y: o.Y,
		W: float64(m.PhysicalBounds.Dx()) / m.DPIScale,
		H: float64(m.PhysicalBounds.Dy()) / m.DPIScale,
	}
}

func intersectRect(a, b Rect) Rect {
	x0 := math.Max(a.X, b.X)
	y0 := math.Max(a.Y, b.Y)
	x1 := math.Min(a.X+a.W, b.X+b.W)
	y1 := math.Min(a.Y+a.H, b.Y+b.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
