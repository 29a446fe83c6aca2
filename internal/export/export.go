// Package export проводит сцену через конвейер сохранения: снимок,
// покадровый рендер, кодирование в целевой формат. Для каждой сцены
// одновременно идет не больше одного экспорта.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/slipsnap/slipsnap/internal/capture"
	"github.com/slipsnap/slipsnap/internal/compositor"
	"github.com/slipsnap/slipsnap/internal/encoder"
	"github.com/slipsnap/slipsnap/internal/scene"
	"github.com/slipsnap/slipsnap/internal/system"
)

var (
	// ErrExportBusy — по этой сцене уже идет экспорт.
	ErrExportBusy = errors.New("экспорт сцены уже выполняется")
	// ErrCancelled — экспорт прерван пользователем.
	ErrCancelled = errors.New("экспорт прерван")
)

// State — фаза конвейера.
type State int

const (
	StateIdle State = iota
	StateRendering
	StateEncoding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRendering:
		return "rendering"
	case StateEncoding:
		return "encoding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// StageError привязывает ошибку к фазе, на которой она случилась.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("экспорт, фаза %s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Options — параметры одного запуска экспорта.
type Options struct {
	Format      encoder.Format // FormatAuto решается по содержимому сцены
	FPS         int
	MaxFrames   int // потолок кадров анимированного экспорта
	JPEGQuality int
	Workers     int // размер пула рендера, 0 = все ядра

	// Настроенный минимум покадровой задержки GIF. Жесткий минимум
	// формата (20мс) кодировщик держит сам.
	MinGIFDelayMs int
}

// Result — итог успешного экспорта.
type Result struct {
	Path   string
	Format encoder.Format
	Frames int
}

// Exporter следит за тем, чтобы каждая сцена экспортировалась в один
// поток, и хранит фазу последнего запуска.
type Exporter struct {
	mu     sync.Mutex
	states map[*scene.Scene]State

	Monitor *system.ResourceMonitor // не обязателен
}

func New() *Exporter {
	return &Exporter{states: make(map[*scene.Scene]State)}
}

// StateOf возвращает фазу последнего экспорта сцены.
func (e *Exporter) StateOf(sc *scene.Scene) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[sc]
}

func (e *Exporter) setState(sc *scene.Scene, st State) {
	e.mu.Lock()
	e.states[sc] = st
	e.mu.Unlock()
}

// Export сохраняет сцену в path. Auto-формат: GIF для сцены с
// анимацией, иначе PNG. Возвращает ErrExportBusy, если экспорт этой
// сцены уже идет; при отмене контекста частичный файл не остается.
func (e *Exporter) Export(ctx context.Context, sc *scene.Scene, path string, opts Options) (*Result, error) {
	e.mu.Lock()
	if st := e.states[sc]; st == StateRendering || st == StateEncoding {
		e.mu.Unlock()
		return nil, ErrExportBusy
	}
	e.states[sc] = StateRendering
	e.mu.Unlock()

	res, err := e.run(ctx, sc, path, opts)
	if err != nil {
		e.setState(sc, StateFailed)
		return nil, err
	}
	e.setState(sc, StateDone)
	return res, nil
}

func (e *Exporter) run(ctx context.Context, sc *scene.Scene, path string, opts Options) (*Result, error) {
	if e.Monitor != nil {
		defer e.Monitor.Measure("export")()
	}

	// Снимок в момент старта: дальнейшие правки сцены на экспорт не
	// влияют.
	snap := sc.Snapshot()

	format := opts.Format
	if format == "" || format == encoder.FormatAuto {
		if snap.RequiresAnimatedExport() {
			format = encoder.FormatGIF
		} else {
			format = encoder.FormatPNG
		}
	}
	if filepath.Ext(path) == "" {
		path += format.Ext()
	}

	var tl timeline
	if format.Animated() {
		tl = buildTimeline(snap, opts.FPS, opts.MaxFrames)
	} else {
		tl = timeline{timesMs: []int{0}, delaysMs: []int{0}}
	}

	frames, err := e.renderFrames(ctx, snap, tl.timesMs, opts.Workers)
	if err != nil {
		return nil, &StageError{State: StateRendering, Err: err}
	}

	e.setState(sc, StateEncoding)
	if err := e.encode(ctx, path, format, frames, tl.delaysMs, opts); err != nil {
		return nil, &StageError{State: StateEncoding, Err: err}
	}

	return &Result{Path: path, Format: format, Frames: len(frames)}, nil
}

// ExportClip сохраняет записанный видеофрагмент. Кадры захвата с
// плавающими метками времени раскладываются на равномерную сетку fps,
// auto-формат для записи — MP4.
func (e *Exporter) ExportClip(ctx context.Context, frames []capture.Frame, path string, format encoder.Format, fps int) (*Result, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("запись не содержит кадров")
	}
	if format == "" || format == encoder.FormatAuto {
		format = encoder.FormatMP4
	}
	if fps < 1 {
		fps = 15
	}
	if filepath.Ext(path) == "" {
		path += format.Ext()
	}
	if e.Monitor != nil {
		defer e.Monitor.Measure("export_clip")()
	}

	grid := encoder.ResampleToGrid(frames, fps)
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}

	var delays []int
	switch format {
	case encoder.FormatMP4:
	case encoder.FormatGIF:
		delays = make([]int, len(grid))
		for i := range delays {
			delays[i] = 1000 / fps
		}
	default:
		return nil, fmt.Errorf("%w: %q для записи", encoder.ErrUnsupportedFormat, format)
	}

	// Та же схема, что и у сцены: кодирование во временную
	// директорию, на целевой путь попадает только готовый файл.
	if err := e.encode(ctx, path, format, grid, delays, Options{FPS: fps}); err != nil {
		return nil, &StageError{State: StateEncoding, Err: err}
	}
	return &Result{Path: path, Format: format, Frames: len(grid)}, nil
}

// renderFrames рендерит кадры пулом воркеров. Кадры независимы друг
// от друга, порядок восстанавливается по индексу.
func (e *Exporter) renderFrames(ctx context.Context, snap *scene.Scene, timesMs []int, workers int) ([]*image.RGBA, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	frames := make([]*image.RGBA, len(timesMs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, atMs := range timesMs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return ErrCancelled
			}
			frames[i] = compositor.Render(snap, atMs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

// encode пишет результат во временную директорию и переносит готовый
// файл на место. Обрыв на любом шаге не оставляет
// частичного файла по целевому пути.
func (e *Exporter) encode(ctx context.Context, path string, format encoder.Format, frames []*image.RGBA, delaysMs []int, opts Options) error {
	tempDir, err := os.MkdirTemp("", "slipsnap_export_")
	if err != nil {
		return fmt.Errorf("временная директория: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}

	tempOut := filepath.Join(tempDir, "out"+format.Ext())
	switch format {
	case encoder.FormatPNG, encoder.FormatJPEG:
		err = encoder.EncodeStill(tempOut, frames[0], format, opts.JPEGQuality)
	case encoder.FormatGIF:
		err = encoder.EncodeGIF(tempOut, frames, applyDelayFloor(delaysMs, opts.MinGIFDelayMs), true)
	case encoder.FormatMP4:
		fps := opts.FPS
		if fps < 1 {
			fps = 15
		}
		err = encoder.EncodeVideo(ctx, tempOut, frames, fps)
	default:
		err = fmt.Errorf("%w: %q", encoder.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("директория вывода: %w", err)
	}
	if err := os.Rename(tempOut, path); err != nil {
		// Разные файловые системы: переносим копированием.
		data, rerr := os.ReadFile(tempOut)
		if rerr != nil {
			return fmt.Errorf("перенос результата: %w", err)
		}
		if werr := os.WriteFile(path, data, 0644); werr != nil {
			return fmt.Errorf("перенос результата: %w", werr)
		}
	}
	return nil
}

func applyDelayFloor(delaysMs []int, floorMs int) []int {
	if floorMs <= 0 {
		return delaysMs
	}
	out := make([]int, len(delaysMs))
	for i, d := range delaysMs {
		if d < floorMs {
			d = floorMs
		}
		out[i] = d
	}
	return out
}
