package scene

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipsnap/slipsnap/internal/display"
	"github.com/slipsnap/slipsnap/internal/payload"
)

func newTestScene() *Scene {
	return NewScene(640, 480, image.NewRGBA(image.Rect(0, 0, 640, 480)))
}

func redPen() ShapeAttrs {
	return ShapeAttrs{Shape: ShapeRect, Stroke: color.NRGBA{R: 255, A: 255}, StrokeWidth: 3}
}

type objState struct {
	id     string
	kind   ObjectKind
	bounds display.Rect
	z      int
	scale  float64
	anim   AnimationSpec
}

func dumpState(s *Scene) []objState {
	var out []objState
	for _, o := range s.Objects() {
		out = append(out, objState{
			id:     o.ID,
			kind:   o.Kind,
			bounds: o.Bounds,
			z:      o.Z,
			scale:  o.Scale,
			anim:   o.Animation,
		})
	}
	return out
}

func TestUndoRedoReproducesExactState(t *testing.T) {
	s := newTestScene()
	r := rand.New(rand.NewSource(7))

	// Произвольная последовательность мутаций.
	var ids []string
	ids = append(ids, s.AddShape(display.Rect{X: 10, Y: 10, W: 50, H: 40}, redPen()))
	ids = append(ids, s.AddText(display.Rect{X: 100, Y: 20, W: 120, H: 30}, TextAttrs{Text: "тест", SizePx: 18, Color: color.NRGBA{A: 255}}))
	ids = append(ids, s.AddZoomLens(display.Rect{X: 200, Y: 100, W: 120, H: 120}, 2.5))
	mutations := 3
	for i := 0; i < 20; i++ {
		id := ids[r.Intn(len(ids))]
		switch r.Intn(5) {
		case 0:
			s.Move(id, float64(r.Intn(40)-20), float64(r.Intn(40)-20))
		case 1:
			s.SetScale(id, 0.5+r.Float64()*2)
		case 2:
			s.BringToFront(id)
		case 3:
			s.SendToBack(id)
		case 4:
			s.SetAnimation(id, AnimationSpec{Kind: AnimPulse, DurationMs: 1200, Loop: true})
		}
		mutations++
	}

	want := dumpState(s)

	n := 0
	for s.Undo() {
		n++
	}
	require.Equal(t, mutations, n, "все мутации должны откатиться")
	require.Equal(t, 0, s.Len())

	for i := 0; i < n; i++ {
		require.True(t, s.Redo())
	}
	require.False(t, s.Redo())

	assert.Equal(t, want, dumpState(s), "redo обязан восстановить сцену объект-в-объект")
}

func TestNewMutationTruncatesRedoTail(t *testing.T) {
	s := newTestScene()
	id := s.AddShape(display.Rect{X: 0, Y: 0, W: 10, H: 10}, redPen())
	s.Move(id, 5, 5)
	require.True(t, s.Undo())

	s.Move(id, -3, 0)
	assert.False(t, s.Redo(), "после новой мутации redo-хвост недействителен")

	o, ok := s.Object(id)
	require.True(t, ok)
	assert.InDelta(t, -3.0, o.Bounds.X, 1e-9)
}

func TestRemoveRestoresInsertionOrderOnUndo(t *testing.T) {
	s := newTestScene()
	a := s.AddShape(display.Rect{X: 0, Y: 0, W: 10, H: 10}, redPen())
	b := s.AddShape(display.Rect{X: 20, Y: 0, W: 10, H: 10}, redPen())
	c := s.AddShape(display.Rect{X: 40, Y: 0, W: 10, H: 10}, redPen())

	require.True(t, s.Remove(b))
	require.True(t, s.Undo())

	var got []string
	for _, o := range s.Objects() {
		got = append(got, o.ID)
	}
	assert.Equal(t, []string{a, b, c}, got)
}

func TestZOrderTieBrokenByInsertion(t *testing.T) {
	s := newTestScene()
	a := s.AddShape(display.Rect{}, redPen())
	b := s.AddShape(display.Rect{}, redPen())
	// Принудительно одинаковый Z.
	oa, _ := s.Object(a)
	ob, _ := s.Object(b)
	oa.Z = 5
	ob.Z = 5

	objs := s.Objects()
	require.Len(t, objs, 2)
	assert.Equal(t, a, objs[0].ID)
	assert.Equal(t, b, objs[1].ID)
}

func TestRequiresAnimatedExport(t *testing.T) {
	s := newTestScene()
	assert.False(t, s.RequiresAnimatedExport())

	id := s.AddShape(display.Rect{X: 0, Y: 0, W: 30, H: 30}, redPen())
	assert.False(t, s.RequiresAnimatedExport())

	s.SetAnimation(id, AnimationSpec{Kind: AnimDraw, DurationMs: 2300, Loop: true})
	assert.True(t, s.RequiresAnimatedExport())

	require.True(t, s.Undo())
	assert.False(t, s.RequiresAnimatedExport(), "откат анимации возвращает статический экспорт")
}

func TestSnapshotIsolatedFromLiveEdits(t *testing.T) {
	s := newTestScene()
	id := s.AddShape(display.Rect{X: 10, Y: 10, W: 30, H: 30}, redPen())

	snap := s.Snapshot()
	s.Move(id, 100, 100)
	s.Remove(id)

	require.Equal(t, 1, snap.Len())
	o := snap.Objects()[0]
	assert.InDelta(t, 10.0, o.Bounds.X, 1e-9, "снимок не должен видеть правок живой сцены")
}

func pasteFrames(n, w, h int) []*image.RGBA {
	frames := make([]*image.RGBA, n)
	for i := range frames {
		frames[i] = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return frames
}

func TestPasteMultiFrameKeepsTimeline(t *testing.T) {
	s := newTestScene()
	p := &payload.Payload{
		Frames:   pasteFrames(3, 6, 4),
		DelaysMs: []int{30, 50, 80},
	}

	id, err := s.Paste(p, display.Point{X: 5, Y: 7})
	require.NoError(t, err)

	o, ok := s.Object(id)
	require.True(t, ok)
	assert.Equal(t, KindGif, o.Kind)
	require.NotNil(t, o.Gif)
	assert.Len(t, o.Gif.Frames, 3, "кадры источника сохраняются все")

	// Шкала переносится из источника один в один: смещения — суммы
	// исходных задержек, без схлопывания до первого кадра.
	want := []TimelineEntry{
		{OffsetMs: 0, Frame: 0},
		{OffsetMs: 30, Frame: 1},
		{OffsetMs: 80, Frame: 2},
	}
	assert.Equal(t, want, o.Animation.Timeline)
	assert.Equal(t, 160, o.Animation.DurationMs)
	assert.True(t, o.Animation.Animated())
	assert.True(t, s.RequiresAnimatedExport())

	assert.Equal(t, display.Rect{X: 5, Y: 7, W: 6, H: 4}, o.Bounds)
}

func TestPasteSingleFrameIsStatic(t *testing.T) {
	s := newTestScene()
	p := &payload.Payload{Frames: pasteFrames(1, 10, 10)}

	id, err := s.Paste(p, display.Point{X: 0, Y: 0})
	require.NoError(t, err)

	o, ok := s.Object(id)
	require.True(t, ok)
	assert.Equal(t, KindRaster, o.Kind)
	require.NotNil(t, o.Raster)
	assert.False(t, o.Animation.Animated())
	assert.False(t, s.RequiresAnimatedExport())
}

func TestPasteEmptyPayload(t *testing.T) {
	s := newTestScene()

	_, err := s.Paste(nil, display.Point{})
	assert.ErrorIs(t, err, payload.ErrCorruptPayload)

	_, err = s.Paste(&payload.Payload{}, display.Point{})
	assert.ErrorIs(t, err, payload.ErrCorruptPayload)
	assert.Equal(t, 0, s.Len())
}
