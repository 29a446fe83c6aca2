// Package compositor детерминированно отрисовывает сцену в растровый
// кадр: одинаковая пара (сцена, момент времени) всегда дает байт в
// байт одинаковый результат. На этом держится воспроизводимость
// анимированного экспорта и его тесты.
package compositor

import (
	"image"
	"image/color"
	stddraw "image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/slipsnap/slipsnap/internal/display"
	"github.com/slipsnap/slipsnap/internal/scene"
	"github.com/slipsnap/slipsnap/internal/system"
)

const (
	lensMinFactor = 1.2
	lensMaxFactor = 8.0
)

// Render отрисовывает сцену на момент atMs (миллисекунды от начала
// цикла анимации). Объекты ложатся сзади наперед в порядке Z, лупа
// увеличивает уже собранный под ней композит.
func Render(sc *scene.Scene, atMs int) *image.RGBA {
	w := int(math.Round(sc.Width))
	h := int(math.Round(sc.Height))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))

	if sc.Background != nil {
		bg := sc.Background.Bounds()
		if bg.Dx() == w && bg.Dy() == h {
			stddraw.Draw(canvas, canvas.Bounds(), sc.Background, bg.Min, stddraw.Src)
		} else {
			xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), sc.Background, bg, xdraw.Src, nil)
		}
	}

	canvasArea := float64(w) * float64(h)
	for _, o := range sc.Objects() {
		st := stateAt(o, atMs, canvasArea)
		b := effectiveBounds(o)
		if b.W <= 0 || b.H <= 0 {
			continue
		}
		switch o.Kind {
		case scene.KindShape:
			renderShape(canvas, b, o.Shape, st)
		case scene.KindRaster:
			if o.Raster != nil && o.Raster.Image != nil {
				renderImage(canvas, b, o.Raster.Image, st.alpha)
			}
		case scene.KindGif:
			if o.Gif != nil && len(o.Gif.Frames) > 0 {
				idx := st.frame
				if idx < 0 || idx >= len(o.Gif.Frames) {
					idx = 0
				}
				renderImage(canvas, b, o.Gif.Frames[idx], st.alpha)
			}
		case scene.KindText:
			if o.Text != nil {
				renderText(canvas, b, o.Text, st.alpha)
			}
		case scene.KindZoomLens:
			if o.Lens != nil {
				renderLens(canvas, b, o.Lens.Factor, st.alpha)
			}
		}
	}
	return canvas
}

// effectiveBounds применяет масштаб объекта вокруг его центра.
func effectiveBounds(o *scene.Object) display.Rect {
	if o.Scale == 1.0 || o.Scale <= 0 {
		return o.Bounds
	}
	cx := o.Bounds.X + o.Bounds.W/2
	cy := o.Bounds.Y + o.Bounds.H/2
	w := o.Bounds.W * o.Scale
	h := o.Bounds.H * o.Scale
	return display.Rect{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

func renderShape(canvas *image.RGBA, b display.Rect, attrs *scene.ShapeAttrs, st animState) {
	if attrs == nil {
		return
	}
	stroke := scaleAlpha(attrs.Stroke, st.alpha)

	switch attrs.Shape {
	case scene.ShapeRect:
		if attrs.HasFill {
			fillPolygon(canvas, rectOutline(b.X, b.Y, b.W, b.H), scaleAlpha(attrs.Fill, st.alpha*st.reveal))
		}
		strokePolyline(canvas, truncateOutline(rectOutline(b.X, b.Y, b.W, b.H), st.reveal), attrs.StrokeWidth, stroke)

	case scene.ShapeEllipse:
		outline := ellipseOutline(b.X, b.Y, b.W, b.H, 64)
		if attrs.HasFill {
			fillPolygon(canvas, outline, scaleAlpha(attrs.Fill, st.alpha*st.reveal))
		}
		strokePolyline(canvas, truncateOutline(outline, st.reveal), attrs.StrokeWidth, stroke)

	case scene.ShapeLine:
		line := []pointF{{b.X, b.Y}, {b.X + b.W, b.Y + b.H}}
		strokePolyline(canvas, truncateOutline(line, st.reveal), attrs.StrokeWidth, stroke)

	case scene.ShapeArrow:
		line := truncateOutline([]pointF{{b.X, b.Y}, {b.X + b.W, b.Y + b.H}}, st.reveal)
		strokePolyline(canvas, line, attrs.StrokeWidth, stroke)
		if len(line) >= 2 {
			renderArrowHead(canvas, line[len(line)-2], line[len(line)-1], attrs.StrokeWidth, stroke)
		}
	}
}

// renderArrowHead рисует наконечник в текущей конечной точке, так что
// при анимации прорисовки он движется вместе с линией.
func renderArrowHead(canvas *image.RGBA, from, tip pointF, strokeWidth float64, col color.NRGBA) {
	dx, dy := tip.x-from.x, tip.y-from.y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux, uy := dx/length, dy/length

	headLen := math.Max(10, strokeWidth*3)
	headHalf := headLen * 0.45

	baseX := tip.x - ux*headLen
	baseY := tip.y - uy*headLen
	fillPolygon(canvas, []pointF{
		{tip.x, tip.y},
		{baseX - uy*headHalf, baseY + ux*headHalf},
		{baseX + uy*headHalf, baseY - ux*headHalf},
	}, col)
}

// renderImage вписывает изображение в целевой прямоугольник. При
// частичной непрозрачности кадр собирается на временном слое и
// накладывается через альфа-маску.
func renderImage(canvas *image.RGBA, b display.Rect, img *image.RGBA, alpha float64) {
	dst := image.Rect(
		int(math.Round(b.X)), int(math.Round(b.Y)),
		int(math.Round(b.X+b.W)), int(math.Round(b.Y+b.H)),
	)
	if dst.Empty() || alpha <= 0 {
		return
	}

	if alpha >= 1.0 {
		xdraw.CatmullRom.Scale(canvas, dst, img, img.Bounds(), xdraw.Over, nil)
		return
	}

	layer := system.GetClearImage(dst)
	defer system.PutImage(layer)
	xdraw.CatmullRom.Scale(layer, dst, img, img.Bounds(), xdraw.Src, nil)
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(alpha * 255))})
	stddraw.DrawMask(canvas, dst, layer, dst.Min, mask, image.Point{}, stddraw.Over)
}

// renderText растеризует текст базовым шрифтом и масштабирует до
// нужного кегля без сглаживания, сохраняя пиксельный характер.
func renderText(canvas *image.RGBA, b display.Rect, attrs *scene.TextAttrs, alpha float64) {
	if attrs.Text == "" {
		return
	}
	face := basicfont.Face7x13
	col := scaleAlpha(attrs.Color, alpha)

	width := font.MeasureString(face, attrs.Text).Ceil()
	if width <= 0 {
		return
	}
	nat := image.Rect(0, 0, width, face.Height)
	layer := system.GetClearImage(nat)
	defer system.PutImage(layer)

	d := font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(attrs.Text)

	sizePx := attrs.SizePx
	if sizePx <= 0 {
		sizePx = face.Height
	}
	scale := float64(sizePx) / float64(face.Height)
	dst := image.Rect(
		int(math.Round(b.X)), int(math.Round(b.Y)),
		int(math.Round(b.X+float64(width)*scale)), int(math.Round(b.Y+float64(sizePx))),
	)
	xdraw.NearestNeighbor.Scale(canvas, dst, layer, nat, xdraw.Over, nil)
}

// renderLens увеличивает область уже собранного композита под лупой и
// накладывает результат в круглой маске с тонкой окантовкой.
func renderLens(canvas *image.RGBA, b display.Rect, factor, alpha float64) {
	if factor < lensMinFactor {
		factor = lensMinFactor
	}
	if factor > lensMaxFactor {
		factor = lensMaxFactor
	}

	radius := math.Min(b.W, b.H) / 2
	if radius < 1 {
		return
	}
	cx := b.X + b.W/2
	cy := b.Y + b.H/2

	dst := image.Rect(
		int(math.Round(cx-radius)), int(math.Round(cy-radius)),
		int(math.Round(cx+radius)), int(math.Round(cy+radius)),
	)
	dst = dst.Intersect(canvas.Bounds())
	if dst.Empty() {
		return
	}

	srcHalf := radius / factor
	src := image.Rect(
		int(math.Round(cx-srcHalf)), int(math.Round(cy-srcHalf)),
		int(math.Round(cx+srcHalf)), int(math.Round(cy+srcHalf)),
	)
	src = src.Intersect(canvas.Bounds())
	if src.Empty() {
		return
	}

	// Источник копируется до записи: лупа читает и пишет один холст.
	srcCopy := system.GetImage(src)
	defer system.PutImage(srcCopy)
	stddraw.Draw(srcCopy, src, canvas, src.Min, stddraw.Src)

	magnified := system.GetClearImage(dst)
	defer system.PutImage(magnified)
	xdraw.CatmullRom.Scale(magnified, dst, srcCopy, src, xdraw.Src, nil)

	stddraw.DrawMask(canvas, dst, magnified, dst.Min, circleMask(dst, cx, cy, radius, alpha), dst.Min, stddraw.Over)

	ring := scaleAlpha(color.NRGBA{R: 255, G: 255, B: 255, A: 230}, alpha)
	strokePolyline(canvas, ellipseOutline(cx-radius, cy-radius, radius*2, radius*2, 64), 2, ring)
}

// circleMask строит альфа-маску круга со сглаженной кромкой в один
// пиксель.
func circleMask(r image.Rectangle, cx, cy, radius, alpha float64) *image.Alpha {
	mask := image.NewAlpha(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			cov := radius + 0.5 - d
			if cov <= 0 {
				continue
			}
			if cov > 1 {
				cov = 1
			}
			mask.SetAlpha(x, y, color.Alpha{A: uint8(math.Round(cov * alpha * 255))})
		}
	}
	return mask
}
