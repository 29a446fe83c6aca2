package encoder

import (
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/slipsnap/slipsnap/internal/capture"
)

func uniformFrame(w, h int, c color.NRGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"png", FormatPNG, true},
		{".PNG", FormatPNG, true},
		{"jpeg", FormatJPEG, true},
		{"jpg", FormatJPEG, true},
		{"gif", FormatGIF, true},
		{"mp4", FormatMP4, true},
		{"", FormatAuto, true},
		{"auto", FormatAuto, true},
		{"webp", "", false},
	}
	for _, c := range cases {
		got, err := ParseFormat(c.in)
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("ParseFormat(%q) = %v, %v", c.in, got, err)
		}
		if !c.ok && err == nil {
			t.Errorf("ParseFormat(%q): ожидалась ошибка", c.in)
		}
	}
}

func TestEncodeGIFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.gif")

	frames := []*image.RGBA{
		uniformFrame(16, 16, color.NRGBA{R: 200, G: 40, B: 40, A: 255}),
		uniformFrame(16, 16, color.NRGBA{R: 40, G: 200, B: 40, A: 255}),
		uniformFrame(16, 16, color.NRGBA{R: 40, G: 40, B: 200, A: 255}),
	}
	if err := EncodeGIF(path, frames, []int{40, 120, 95}, true); err != nil {
		t.Fatalf("EncodeGIF: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}

	if len(g.Image) != 3 {
		t.Fatalf("кадров %d, ожидалось 3", len(g.Image))
	}
	if g.LoopCount != 0 {
		t.Errorf("LoopCount = %d, ожидался бесконечный цикл", g.LoopCount)
	}
	// 40мс -> 4сс, 120мс -> 12сс, 95мс -> 10сс (округление к ближайшему).
	want := []int{4, 12, 10}
	for i, d := range g.Delay {
		if d != want[i] {
			t.Errorf("задержка кадра %d: %dсс, ожидалось %dсс", i, d, want[i])
		}
	}
}

func TestEncodeGIFDelayFloor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fast.gif")

	frames := []*image.RGBA{
		uniformFrame(8, 8, color.NRGBA{A: 255}),
		uniformFrame(8, 8, color.NRGBA{R: 255, A: 255}),
	}
	if err := EncodeGIF(path, frames, []int{3, 0}, false); err != nil {
		t.Fatalf("EncodeGIF: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatal(err)
	}
	for i, d := range g.Delay {
		if d < minGifDelayCs {
			t.Errorf("кадр %d: задержка %dсс ниже пола", i, d)
		}
	}
}

func TestEncodeGIFFrameDelayMismatch(t *testing.T) {
	frames := []*image.RGBA{uniformFrame(8, 8, color.NRGBA{A: 255})}
	if err := EncodeGIF(filepath.Join(t.TempDir(), "x.gif"), frames, []int{10, 20}, false); err == nil {
		t.Fatal("рассинхрон кадров и задержек должен быть ошибкой")
	}
}

func TestPerFramePalettesDecision(t *testing.T) {
	// Три почти одинаковых кадра: общая палитра.
	same := []*image.RGBA{
		uniformFrame(16, 16, color.NRGBA{R: 100, G: 100, B: 100, A: 255}),
		uniformFrame(16, 16, color.NRGBA{R: 102, G: 101, B: 99, A: 255}),
		uniformFrame(16, 16, color.NRGBA{R: 98, G: 100, B: 103, A: 255}),
	}
	if perFramePalettes(same) {
		t.Error("близкие кадры не требуют отдельных палитр")
	}

	// Резкая смена среднего цвета: палитра на кадр.
	jumpy := []*image.RGBA{
		uniformFrame(16, 16, color.NRGBA{R: 255, A: 255}),
		uniformFrame(16, 16, color.NRGBA{B: 255, A: 255}),
		uniformFrame(16, 16, color.NRGBA{G: 255, A: 255}),
	}
	if !perFramePalettes(jumpy) {
		t.Error("контрастные кадры требуют отдельных палитр")
	}
}

func TestResampleToGrid(t *testing.T) {
	mk := func(ts int) capture.Frame {
		return capture.Frame{Image: uniformFrame(4, 4, color.NRGBA{R: uint8(ts % 256), A: 255}), TimestampMs: ts}
	}

	// Неровные метки времени при целевых 10 fps (шаг 100мс).
	frames := []capture.Frame{mk(0), mk(95), mk(210), mk(290), mk(405)}
	grid := ResampleToGrid(frames, 10)

	// Сетка 0,100,200,300,400: ближайшие кадры 0,95,210,290,405.
	if len(grid) != 5 {
		t.Fatalf("ячеек %d, ожидалось 5", len(grid))
	}
	wantTs := []int{0, 95, 210, 290, 405}
	for i, img := range grid {
		if img != frames[indexByTs(frames, wantTs[i])].Image {
			t.Errorf("ячейка %d: выбран не ближайший кадр", i)
		}
	}

	// Большая дыра в захвате: кадр повторяется, сетка не рвется.
	gappy := []capture.Frame{mk(0), mk(500)}
	grid = ResampleToGrid(gappy, 10)
	if len(grid) != 6 {
		t.Fatalf("ячеек %d, ожидалось 6", len(grid))
	}
	if grid[1] != gappy[0].Image || grid[4] != gappy[1].Image {
		t.Error("дыра должна закрываться ближайшим кадром")
	}
}

func indexByTs(frames []capture.Frame, ts int) int {
	for i, f := range frames {
		if f.TimestampMs == ts {
			return i
		}
	}
	return -1
}

func TestEncodeStillUnsupportedFormat(t *testing.T) {
	img := uniformFrame(4, 4, color.NRGBA{A: 255})
	if err := EncodeStill(filepath.Join(t.TempDir(), "x.gif"), img, FormatGIF, 90); err == nil {
		t.Fatal("GIF не является статичным форматом")
	}
}
