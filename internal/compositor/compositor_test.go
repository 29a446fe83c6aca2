package compositor

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/slipsnap/slipsnap/internal/display"
	"github.com/slipsnap/slipsnap/internal/scene"
)

func solidBackground(w, h int, c color.NRGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestRenderDeterministic(t *testing.T) {
	sc := scene.NewScene(200, 150, solidBackground(200, 150, color.NRGBA{R: 30, G: 30, B: 30, A: 255}))
	id := sc.AddShape(display.Rect{X: 20, Y: 20, W: 80, H: 50}, scene.ShapeAttrs{
		Shape: scene.ShapeEllipse, Stroke: color.NRGBA{R: 255, A: 255}, StrokeWidth: 3,
	})
	sc.SetAnimation(id, scene.AnimationSpec{Kind: scene.AnimPulse, DurationMs: 1200, Loop: true})
	sc.AddText(display.Rect{X: 10, Y: 100, W: 100, H: 20}, scene.TextAttrs{
		Text: "demo", Color: color.NRGBA{G: 255, A: 255}, SizePx: 16,
	})
	sc.AddZoomLens(display.Rect{X: 100, Y: 40, W: 60, H: 60}, 2.0)

	for _, atMs := range []int{0, 333, 900} {
		a := Render(sc, atMs)
		b := Render(sc, atMs)
		if !bytes.Equal(a.Pix, b.Pix) {
			t.Fatalf("повторный рендер на %dмс дал другой результат", atMs)
		}
	}
}

func TestRenderZOrder(t *testing.T) {
	sc := scene.NewScene(50, 50, solidBackground(50, 50, color.NRGBA{A: 255}))
	bottom := sc.AddShape(display.Rect{X: 0, Y: 0, W: 50, H: 50}, scene.ShapeAttrs{
		Shape: scene.ShapeRect, Stroke: color.NRGBA{R: 255, A: 255}, StrokeWidth: 1,
		Fill: color.NRGBA{R: 255, A: 255}, HasFill: true,
	})
	sc.AddShape(display.Rect{X: 0, Y: 0, W: 50, H: 50}, scene.ShapeAttrs{
		Shape: scene.ShapeRect, Stroke: color.NRGBA{B: 255, A: 255}, StrokeWidth: 1,
		Fill: color.NRGBA{B: 255, A: 255}, HasFill: true,
	})

	img := Render(sc, 0)
	c := img.RGBAAt(25, 25)
	if c.B < 200 || c.R > 50 {
		t.Fatalf("верхним должен быть синий объект, в центре %v", c)
	}

	sc.BringToFront(bottom)
	img = Render(sc, 0)
	c = img.RGBAAt(25, 25)
	if c.R < 200 {
		t.Fatalf("после BringToFront в центре должен быть красный, получено %v", c)
	}
}

func TestGifFrameLookup(t *testing.T) {
	spec := scene.AnimationSpec{
		Kind:       scene.AnimGifLoop,
		DurationMs: 350,
		Loop:       true,
		Timeline: []scene.TimelineEntry{
			{OffsetMs: 0, Frame: 0},
			{OffsetMs: 100, Frame: 1},
			{OffsetMs: 250, Frame: 2},
		},
	}

	cases := []struct {
		atMs int
		want int
	}{
		{0, 0},
		{99, 0},
		{100, 1},
		{249, 1},
		{250, 2},
		{349, 2},
		{350, 0},  // начало второго цикла
		{460, 1},  // 460 % 350 = 110
		{1050, 0}, // точная граница третьего цикла
	}
	for _, c := range cases {
		if got := gifFrameAt(spec, c.atMs); got != c.want {
			t.Errorf("atMs=%d: кадр %d, ожидался %d", c.atMs, got, c.want)
		}
	}

	spec.Loop = false
	if got := gifFrameAt(spec, 10000); got != 2 {
		t.Errorf("без цикла шкала замирает на последнем кадре, получен %d", got)
	}
}

func TestDrawRevealProgression(t *testing.T) {
	o := &scene.Object{
		Bounds:    display.Rect{X: 0, Y: 0, W: 40, H: 40},
		Scale:     1,
		Animation: scene.AnimationSpec{Kind: scene.AnimDraw, Loop: true},
	}

	prev := -1.0
	for _, atMs := range []int{0, 200, 400, 800, 1200, 1600} {
		st := stateAt(o, atMs, 1000*1000)
		if st.reveal < prev {
			t.Fatalf("прорисовка не монотонна: %f после %f на %dмс", st.reveal, prev, atMs)
		}
		prev = st.reveal
	}

	// Фаза удержания: контур полный.
	if st := stateAt(o, drawActiveMs+300, 1000*1000); st.reveal != 1.0 {
		t.Errorf("в фазе удержания reveal=%f", st.reveal)
	}
	// После рестарта цикла прорисовка начинается заново.
	if st := stateAt(o, drawActiveMs+drawHoldMs+10, 1000*1000); st.reveal >= 0.5 {
		t.Errorf("после рестарта цикла reveal=%f", st.reveal)
	}
}

func TestPulseAlphaRangeAndEligibility(t *testing.T) {
	small := &scene.Object{
		Bounds:    display.Rect{X: 0, Y: 0, W: 50, H: 50},
		Scale:     1,
		Animation: scene.AnimationSpec{Kind: scene.AnimPulse, Loop: true},
	}
	canvasArea := 1000.0 * 1000.0

	for atMs := 0; atMs < 2*pulsePeriodMs; atMs += 50 {
		a := stateAt(small, atMs, canvasArea).alpha
		if a < pulseMinAlpha-1e-9 || a > 1.0+1e-9 {
			t.Fatalf("alpha=%f вне диапазона на %dмс", a, atMs)
		}
	}
	if a := stateAt(small, 0, canvasArea).alpha; math.Abs(a-1.0) > 1e-9 {
		t.Errorf("в нуле цикла alpha=%f", a)
	}
	if a := stateAt(small, pulsePeriodMs/2, canvasArea).alpha; math.Abs(a-pulseMinAlpha) > 1e-9 {
		t.Errorf("в середине цикла alpha=%f, ожидалось %f", a, pulseMinAlpha)
	}

	// Объект крупнее 35% канвы пульсировать не должен.
	big := &scene.Object{
		Bounds:    display.Rect{X: 0, Y: 0, W: 700, H: 600},
		Scale:     1,
		Animation: scene.AnimationSpec{Kind: scene.AnimPulse, Loop: true},
	}
	if a := stateAt(big, pulsePeriodMs/2, canvasArea).alpha; a != 1.0 {
		t.Errorf("крупный объект пульсирует: alpha=%f", a)
	}
}

func TestTruncateOutline(t *testing.T) {
	pts := []pointF{{0, 0}, {10, 0}, {10, 10}}

	half := truncateOutline(pts, 0.5)
	if len(half) != 2 || half[1].x != 10 || half[1].y != 0 {
		t.Fatalf("половина Г-образной ломаной: %v", half)
	}

	threeQuarters := truncateOutline(pts, 0.75)
	last := threeQuarters[len(threeQuarters)-1]
	if math.Abs(last.x-10) > 1e-9 || math.Abs(last.y-5) > 1e-9 {
		t.Fatalf("3/4 ломаной заканчиваются в %v", last)
	}

	if got := truncateOutline(pts, 1.0); len(got) != 3 {
		t.Fatalf("полная доля обрезает точки: %v", got)
	}
	if got := truncateOutline(pts, 0); got != nil {
		t.Fatalf("нулевая доля должна быть пустой: %v", got)
	}
}

func TestLensMagnifiesUnderlyingComposite(t *testing.T) {
	// Левая половина фона белая, правая черная. Лупа по центру стыка
	// увеличивает границу, белая область внутри линзы расширяется.
	bg := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				bg.Set(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				bg.Set(x, y, color.NRGBA{A: 255})
			}
		}
	}
	sc := scene.NewScene(100, 100, bg)
	// Центр лупы (55, 50) правее стыка: увеличение сдвигает границу
	// цветов влево, к точке 55 + (50-55)*2 = 45.
	sc.AddZoomLens(display.Rect{X: 35, Y: 30, W: 40, H: 40}, 2.0)

	img := Render(sc, 0)

	// Под точкой (48, 50) фон белый, но лупа показывает черную часть.
	c := img.RGBAAt(48, 50)
	if c.R > 50 {
		t.Errorf("лупа не увеличила композит: пиксель %v", c)
	}
	// Вне линзы фон не тронут.
	edge := img.RGBAAt(5, 50)
	if edge.R < 200 {
		t.Errorf("фон вне лупы изменился: %v", edge)
	}
}
