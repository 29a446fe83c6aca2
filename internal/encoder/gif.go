package encoder

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"math"
	"os"
	"path/filepath"
)

// Минимальная задержка кадра GIF. Многие просмотрщики трактуют
// значения ниже 2 сотых секунды как "максимально быстро" и ломают
// тайминг, поэтому задержки поднимаются до этого пола.
const minGifDelayCs = 2

// EncodeGIF сохраняет последовательность кадров в GIF. Задержки
// задаются в миллисекундах и округляются до сотых долей секунды,
// loop=true записывает бесконечный цикл.
func EncodeGIF(path string, frames []*image.RGBA, delaysMs []int, loop bool) error {
	if len(frames) == 0 {
		return fmt.Errorf("GIF без кадров")
	}
	if len(delaysMs) != len(frames) {
		return fmt.Errorf("кадров %d, задержек %d", len(frames), len(delaysMs))
	}

	perFrame := perFramePalettes(frames)
	var shared color.Palette
	if !perFrame {
		shared = buildPalette(frames)
	}

	g := &gif.GIF{
		Config: image.Config{
			Width:  frames[0].Bounds().Dx(),
			Height: frames[0].Bounds().Dy(),
		},
	}
	if loop {
		g.LoopCount = 0
	} else {
		g.LoopCount = -1
	}

	for i, frame := range frames {
		pal := shared
		if perFrame {
			pal = buildPalette(frames[i : i+1])
		}
		paletted := image.NewPaletted(image.Rectangle{Max: frame.Bounds().Size()}, pal)
		draw.Draw(paletted, paletted.Bounds(), frame, frame.Bounds().Min, draw.Src)
		g.Image = append(g.Image, paletted)

		delayCs := int(math.Round(float64(delaysMs[i]) / 10.0))
		if delayCs < minGifDelayCs {
			delayCs = minGifDelayCs
		}
		g.Delay = append(g.Delay, delayCs)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("директория вывода: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("создание файла: %w", err)
	}
	defer f.Close()

	if err := gif.EncodeAll(f, g); err != nil {
		return fmt.Errorf("кодирование GIF: %w", err)
	}
	return f.Sync()
}
