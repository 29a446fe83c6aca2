package scene

import (
	"image"
	"image/color"
	"sort"

	"github.com/google/uuid"

	"github.com/slipsnap/slipsnap/internal/display"
)

// ObjectKind — закрытый набор вариантов объекта сцены. Композитор
// делает исчерпывающий switch по этому полю; открытой иерархии нет.
type ObjectKind int

const (
	KindShape ObjectKind = iota
	KindRaster
	KindGif
	KindText
	KindZoomLens
)

// ShapeKind определяет геометрию статической фигуры.
type ShapeKind int

const (
	ShapeRect ShapeKind = iota
	ShapeEllipse
	ShapeLine
	ShapeArrow
)

// AnimKind — вид анимации объекта.
type AnimKind int

const (
	AnimNone AnimKind = iota
	AnimDraw
	AnimPulse
	AnimGifLoop
)

// TimelineEntry — точка дискретной временной шкалы: смещение от начала
// цикла и номер кадра источника (для GifLoop).
type TimelineEntry struct {
	OffsetMs int
	Frame    int
}

// AnimationSpec декларативно описывает изменение объекта во времени.
// Для GifLoop шкала копируется из исходного GIF, для Draw/Pulse
// состояние — детерминированная функция (objectID, elapsedMs).
type AnimationSpec struct {
	Kind       AnimKind
	DurationMs int
	Loop       bool
	Timeline   []TimelineEntry
}

// Animated reports whether the animation produces more than one state.
func (a AnimationSpec) Animated() bool {
	if a.Kind == AnimNone {
		return false
	}
	return a.Loop || len(a.Timeline) > 1
}

func (a AnimationSpec) clone() AnimationSpec {
	c := a
	c.Timeline = append([]TimelineEntry(nil), a.Timeline...)
	return c
}

// ShapeAttrs — атрибуты статической фигуры.
type ShapeAttrs struct {
	Shape       ShapeKind
	Stroke      color.NRGBA
	StrokeWidth float64
	Fill        color.NRGBA
	HasFill     bool
}

// RasterAttrs — вставленное растровое изображение.
type RasterAttrs struct {
	Image *image.RGBA
}

// GifAttrs — анимированный GIF-объект: кадры храним декодированными,
// тайминг лежит в AnimationSpec.Timeline.
type GifAttrs struct {
	Frames []*image.RGBA
}

// TextAttrs — текстовая аннотация.
type TextAttrs struct {
	Text   string
	Color  color.NRGBA
	SizePx int
}

// LensAttrs — круговая лупа. Увеличивает текущий композит под собой,
// а не статический снимок.
type LensAttrs struct {
	Factor float64
}

// Object — элемент сцены. Ровно одно из полей-атрибутов не nil,
// в соответствии с Kind.
type Object struct {
	ID        string
	Kind      ObjectKind
	Bounds    display.Rect
	Z         int
	Scale     float64
	Rotation  float64
	Animation AnimationSpec

	Shape  *ShapeAttrs
	Raster *RasterAttrs
	Gif    *GifAttrs
	Text   *TextAttrs
	Lens   *LensAttrs

	seq int // порядок вставки, tie-break для одинаковых Z
}

func (o *Object) clone() *Object {
	c := *o
	c.Animation = o.Animation.clone()
	if o.Shape != nil {
		sh := *o.Shape
		c.Shape = &sh
	}
	if o.Raster != nil {
		ra := *o.Raster
		c.Raster = &ra
	}
	if o.Gif != nil {
		gf := GifAttrs{Frames: append([]*image.RGBA(nil), o.Gif.Frames...)}
		c.Gif = &gf
	}
	if o.Text != nil {
		tx := *o.Text
		c.Text = &tx
	}
	if o.Lens != nil {
		ln := *o.Lens
		c.Lens = &ln
	}
	return &c
}

// Scene владеет объектами целиком: удаленный объект исчезает из
// коллекции, внешних ссылок на него не остается. Все мутации идут
// через стек команд (undo/redo).
type Scene struct {
	Width, Height float64
	Background    *image.RGBA

	objects []*Object
	nextSeq int

	history []command
	cursor  int
}

// NewScene создает сцену с фоновым снимком и логическими размерами.
func NewScene(width, height float64, background *image.RGBA) *Scene {
	return &Scene{Width: width, Height: height, Background: background}
}

// Object возвращает объект по ID.
func (s *Scene) Object(id string) (*Object, bool) {
	for _, o := range s.objects {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// Objects возвращает объекты в порядке отрисовки: по Z, при равенстве —
// по порядку вставки.
func (s *Scene) Objects() []*Object {
	out := append([]*Object(nil), s.objects...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Len reports the number of objects in the scene.
func (s *Scene) Len() int { return len(s.objects) }

// RequiresAnimatedExport — true, если хотя бы один объект несет
// анимацию с циклом или многокадровой шкалой. Решает still-vs-animated
// при авто-формате экспорта.
func (s *Scene) RequiresAnimatedExport() bool {
	for _, o := range s.objects {
		if o.Animation.Animated() {
			return true
		}
	}
	return false
}

// Snapshot делает структурную копию сцены для экспорта: список
// объектов и спецификации анимаций копируются, пиксельные данные
// кадров разделяются (они не мутируются после создания объекта).
// Правки живой сцены не влияют на идущий экспорт.
func (s *Scene) Snapshot() *Scene {
	c := &Scene{
		Width:      s.Width,
		Height:     s.Height,
		Background: s.Background,
		nextSeq:    s.nextSeq,
	}
	c.objects = make([]*Object, len(s.objects))
	for i, o := range s.objects {
		c.objects[i] = o.clone()
	}
	return c
}

func (s *Scene) newObject(kind ObjectKind, at display.Rect) *Object {
	o := &Object{
		ID:     uuid.NewString(),
		Kind:   kind,
		Bounds: at,
		Scale:  1.0,
		Z:      s.maxZ() + 1,
		seq:    s.nextSeq,
	}
	s.nextSeq++
	return o
}

func (s *Scene) maxZ() int {
	z := 0
	for _, o := range s.objects {
		if o.Z > z {
			z = o.Z
		}
	}
	return z
}

func (s *Scene) minZ() int {
	z := 0
	for _, o := range s.objects {
		if o.Z < z {
			z = o.Z
		}
	}
	return z
}

// AddShape добавляет фигуру и возвращает её ID.
func (s *Scene) AddShape(at display.Rect, attrs ShapeAttrs) string {
	o := s.newObject(KindShape, at)
	o.Shape = &attrs
	s.push(&addCommand{obj: o})
	return o.ID
}

// AddRaster добавляет статическое изображение.
func (s *Scene) AddRaster(at display.Rect, img *image.RGBA) string {
	o := s.newObject(KindRaster, at)
	o.Raster = &RasterAttrs{Image: img}
	s.push(&addCommand{obj: o})
	return o.ID
}

// AddGif добавляет анимированный GIF: кадры плюс шкала задержек,
// скопированная из источника без изменений.
func (s *Scene) AddGif(at display.Rect, frames []*image.RGBA, timeline []TimelineEntry, durationMs int) string {
	o := s.newObject(KindGif, at)
	o.Gif = &GifAttrs{Frames: frames}
	o.Animation = AnimationSpec{
		Kind:       AnimGifLoop,
		DurationMs: durationMs,
		Loop:       true,
		Timeline:   append([]TimelineEntry(nil), timeline...),
	}
	s.push(&addCommand{obj: o})
	return o.ID
}

// AddText добавляет текстовую аннотацию.
func (s *Scene) AddText(at display.Rect, attrs TextAttrs) string {
	o := s.newObject(KindText, at)
	o.Text = &attrs
	s.push(&addCommand{obj: o})
	return o.ID
}

// AddZoomLens добавляет лупу с коэффициентом увеличения.
func (s *Scene) AddZoomLens(at display.Rect, factor float64) string {
	o := s.newObject(KindZoomLens, at)
	o.Lens = &LensAttrs{Factor: factor}
	s.push(&addCommand{obj: o})
	return o.ID
}

// Remove удаляет объект из сцены.
func (s *Scene) Remove(id string) bool {
	o, ok := s.Object(id)
	if !ok {
		return false
	}
	s.push(&removeCommand{obj: o})
	return true
}

// Move смещает объект на (dx, dy) в логических координатах.
func (s *Scene) Move(id string, dx, dy float64) bool {
	o, ok := s.Object(id)
	if !ok {
		return false
	}
	old := o.Bounds
	next := old
	next.X += dx
	next.Y += dy
	s.push(&moveCommand{id: id, from: old, to: next})
	return true
}

// SetScale изменяет масштаб объекта.
func (s *Scene) SetScale(id string, scale float64) bool {
	o, ok := s.Object(id)
	if !ok || scale <= 0 {
		return false
	}
	s.push(&scaleCommand{id: id, from: o.Scale, to: scale})
	return true
}

// SetAnimation назначает объекту анимацию.
func (s *Scene) SetAnimation(id string, spec AnimationSpec) bool {
	o, ok := s.Object(id)
	if !ok {
		return false
	}
	s.push(&animCommand{id: id, from: o.Animation.clone(), to: spec.clone()})
	return true
}

// BringToFront поднимает объект над всеми остальными.
func (s *Scene) BringToFront(id string) bool {
	o, ok := s.Object(id)
	if !ok {
		return false
	}
	s.push(&zCommand{id: id, from: o.Z, to: s.maxZ() + 1})
	return true
}

// SendToBack опускает объект под все остальные.
func (s *Scene) SendToBack(id string) bool {
	o, ok := s.Object(id)
	if !ok {
		return false
	}
	s.push(&zCommand{id: id, from: o.Z, to: s.minZ() - 1})
	return true
}
