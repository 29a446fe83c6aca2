package encoder

import (
	"image"
	"image/color"
	"sort"
)

// Порог межкадровой дисперсии среднего цвета, выше которого общая
// палитра начинает заметно врать и каждый кадр квантуется отдельно.
const paletteVarianceThreshold = 48.0

const paletteSize = 256

// Выборка пикселей на кадр для построения палитры. Полный проход по
// 4K-кадру не дает видимой разницы в качестве.
const paletteSampleBudget = 4096

type rgb struct {
	r, g, b uint8
}

// perFramePalettes решает, нужна ли каждому кадру собственная палитра.
// Критерий: дисперсия среднего цвета кадров по каналам.
func perFramePalettes(frames []*image.RGBA) bool {
	if len(frames) < 2 {
		return false
	}

	means := make([][3]float64, len(frames))
	for i, f := range frames {
		var sum [3]float64
		n := 0
		forEachSample(f, func(c rgb) {
			sum[0] += float64(c.r)
			sum[1] += float64(c.g)
			sum[2] += float64(c.b)
			n++
		})
		if n == 0 {
			continue
		}
		means[i] = [3]float64{sum[0] / float64(n), sum[1] / float64(n), sum[2] / float64(n)}
	}

	var avg [3]float64
	for _, m := range means {
		for c := 0; c < 3; c++ {
			avg[c] += m[c]
		}
	}
	for c := 0; c < 3; c++ {
		avg[c] /= float64(len(means))
	}

	variance := 0.0
	for _, m := range means {
		for c := 0; c < 3; c++ {
			d := m[c] - avg[c]
			variance += d * d
		}
	}
	variance /= float64(len(means) * 3)
	return variance > paletteVarianceThreshold
}

// buildPalette строит палитру методом медианного сечения по выборке
// пикселей всех переданных кадров.
func buildPalette(frames []*image.RGBA) color.Palette {
	var samples []rgb
	for _, f := range frames {
		forEachSample(f, func(c rgb) {
			samples = append(samples, c)
		})
	}
	if len(samples) == 0 {
		return color.Palette{color.Black}
	}

	boxes := [][]rgb{samples}
	for len(boxes) < paletteSize {
		// Делим самый населенный ящик по самому широкому каналу.
		widest := -1
		for i, box := range boxes {
			if len(box) < 2 {
				continue
			}
			if widest < 0 || len(box) > len(boxes[widest]) {
				widest = i
			}
		}
		if widest < 0 {
			break
		}

		box := boxes[widest]
		ch := widestChannel(box)
		sort.Slice(box, func(i, j int) bool {
			return channel(box[i], ch) < channel(box[j], ch)
		})
		mid := len(box) / 2
		boxes[widest] = box[:mid]
		boxes = append(boxes, box[mid:])
	}

	pal := make(color.Palette, 0, len(boxes))
	for _, box := range boxes {
		var sum [3]int
		for _, c := range box {
			sum[0] += int(c.r)
			sum[1] += int(c.g)
			sum[2] += int(c.b)
		}
		n := len(box)
		if n == 0 {
			continue
		}
		pal = append(pal, color.RGBA{
			R: uint8(sum[0] / n),
			G: uint8(sum[1] / n),
			B: uint8(sum[2] / n),
			A: 255,
		})
	}
	if len(pal) == 0 {
		pal = color.Palette{color.Black}
	}
	return pal
}

func widestChannel(box []rgb) int {
	var min, max [3]uint8
	min = [3]uint8{255, 255, 255}
	for _, c := range box {
		for ch := 0; ch < 3; ch++ {
			v := channel(c, ch)
			if v < min[ch] {
				min[ch] = v
			}
			if v > max[ch] {
				max[ch] = v
			}
		}
	}
	widest, span := 0, -1
	for ch := 0; ch < 3; ch++ {
		if s := int(max[ch]) - int(min[ch]); s > span {
			widest, span = ch, s
		}
	}
	return widest
}

func channel(c rgb, ch int) uint8 {
	switch ch {
	case 0:
		return c.r
	case 1:
		return c.g
	}
	return c.b
}

func forEachSample(f *image.RGBA, fn func(rgb)) {
	b := f.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return
	}
	step := total / paletteSampleBudget
	if step < 1 {
		step = 1
	}
	for i := 0; i < total; i += step {
		x := b.Min.X + i%b.Dx()
		y := b.Min.Y + i/b.Dx()
		off := f.PixOffset(x, y)
		fn(rgb{f.Pix[off], f.Pix[off+1], f.Pix[off+2]})
	}
}
