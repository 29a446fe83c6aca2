package compositor

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

type pointF struct {
	x, y float64
}

// outlinePoints строит ломаную контура фигуры в координатах канвы.
// Контур замкнутых фигур заканчивается стартовой точкой.
func rectOutline(x, y, w, h float64) []pointF {
	return []pointF{
		{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}, {x, y},
	}
}

func ellipseOutline(x, y, w, h float64, segments int) []pointF {
	cx, cy := x+w/2, y+h/2
	rx, ry := w/2, h/2
	pts := make([]pointF, 0, segments+1)
	for i := 0; i <= segments; i++ {
		// Старт с верхней точки, обход по часовой стрелке.
		a := -math.Pi/2 + 2*math.Pi*float64(i)/float64(segments)
		pts = append(pts, pointF{cx + rx*math.Cos(a), cy + ry*math.Sin(a)})
	}
	return pts
}

// truncateOutline возвращает первую долю frac ломаной по длине дуги.
// Этим реализуется эффект постепенной прорисовки контура.
func truncateOutline(pts []pointF, frac float64) []pointF {
	if frac >= 1.0 || len(pts) < 2 {
		return pts
	}
	if frac <= 0 {
		return nil
	}

	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += math.Hypot(pts[i].x-pts[i-1].x, pts[i].y-pts[i-1].y)
	}
	budget := total * frac

	out := []pointF{pts[0]}
	for i := 1; i < len(pts); i++ {
		seg := math.Hypot(pts[i].x-pts[i-1].x, pts[i].y-pts[i-1].y)
		if seg <= budget {
			out = append(out, pts[i])
			budget -= seg
			continue
		}
		if seg > 0 {
			t := budget / seg
			out = append(out, pointF{
				lerp(pts[i-1].x, pts[i].x, t),
				lerp(pts[i-1].y, pts[i].y, t),
			})
		}
		break
	}
	return out
}

// strokePolyline обводит ломаную линией заданной толщины. Каждый
// сегмент — четырехугольник, стыки и концы закрываются круглыми
// заглушками, чтобы на изломах не было щелей.
func strokePolyline(dst *image.RGBA, pts []pointF, width float64, col color.NRGBA) {
	if len(pts) < 2 || col.A == 0 {
		return
	}
	if width < 1 {
		width = 1
	}
	half := width / 2

	r := vector.NewRasterizer(dst.Bounds().Dx(), dst.Bounds().Dy())
	off := pointF{float64(dst.Bounds().Min.X), float64(dst.Bounds().Min.Y)}

	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		dx, dy := b.x-a.x, b.y-a.y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		// Перпендикуляр к сегменту.
		nx, ny := -dy/length*half, dx/length*half

		r.MoveTo(float32(a.x+nx-off.x), float32(a.y+ny-off.y))
		r.LineTo(float32(b.x+nx-off.x), float32(b.y+ny-off.y))
		r.LineTo(float32(b.x-nx-off.x), float32(b.y-ny-off.y))
		r.LineTo(float32(a.x-nx-off.x), float32(a.y-ny-off.y))
		r.ClosePath()
	}

	for _, p := range pts {
		addCircle(r, p.x-off.x, p.y-off.y, half)
	}

	r.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
}

// fillPolygon заливает замкнутый многоугольник.
func fillPolygon(dst *image.RGBA, pts []pointF, col color.NRGBA) {
	if len(pts) < 3 || col.A == 0 {
		return
	}
	r := vector.NewRasterizer(dst.Bounds().Dx(), dst.Bounds().Dy())
	off := pointF{float64(dst.Bounds().Min.X), float64(dst.Bounds().Min.Y)}

	r.MoveTo(float32(pts[0].x-off.x), float32(pts[0].y-off.y))
	for _, p := range pts[1:] {
		r.LineTo(float32(p.x-off.x), float32(p.y-off.y))
	}
	r.ClosePath()
	r.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
}

func addCircle(r *vector.Rasterizer, cx, cy, radius float64) {
	const segments = 12
	if radius <= 0 {
		return
	}
	r.MoveTo(float32(cx+radius), float32(cy))
	for i := 1; i <= segments; i++ {
		a := 2 * math.Pi * float64(i) / segments
		r.LineTo(float32(cx+radius*math.Cos(a)), float32(cy+radius*math.Sin(a)))
	}
	r.ClosePath()
}

// scaleAlpha умножает альфа-канал цвета на множитель 0..1.
func scaleAlpha(col color.NRGBA, alpha float64) color.NRGBA {
	if alpha >= 1.0 {
		return col
	}
	if alpha < 0 {
		alpha = 0
	}
	col.A = uint8(math.Round(float64(col.A) * alpha))
	return col
}
