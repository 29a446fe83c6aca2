package capture

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/slipsnap/slipsnap/internal/display"
)

// Frame — один кадр видеозахвата. TimestampMs — реально достигнутое
// время от старта записи, а не номинальный номер тика: при пропуске
// тиков расчет задержек ниже по пайплайну должен опираться на
// фактическое время.
type Frame struct {
	Image       *image.RGBA
	TimestampMs int
}

// VideoCapture ведет запись кадров в собственной горутине. Буфер кадров
// только дописывается циклом захвата и читается исключительно после
// Stop()/Cancel() — конкурентного доступа к нему нет.
type VideoCapture struct {
	frames  []Frame
	dropped int

	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	cancel bool
}

// StartVideo запускает запись логического региона: тики таймера с шагом
// 1000/fps мс, без блокировки на медленных кадрах (политика drop-frame).
// Захват останавливается по maxDuration, Stop(), Cancel() или контексту.
func StartVideo(ctx context.Context, topo *display.Topology, g Grabber, region display.Rect, fps int, maxDuration time.Duration) (*VideoCapture, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("некорректный fps: %d", fps)
	}
	phys, ok := topo.PhysicalRegion(region)
	if !ok || phys.Empty() {
		return nil, ErrRegionOutOfBounds
	}
	clamped, err := clampToMonitors(topo, phys)
	if err != nil {
		return nil, err
	}

	vc := &VideoCapture{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go vc.loop(ctx, g, clamped, fps, maxDuration)
	return vc, nil
}

func (vc *VideoCapture) loop(ctx context.Context, g Grabber, rect image.Rectangle, fps int, maxDuration time.Duration) {
	defer close(vc.done)

	interval := time.Second / time.Duration(fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	deadline := start.Add(maxDuration)
	lastTs := -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-vc.stop:
			return
		case tick := <-ticker.C:
			if tick.After(deadline) {
				return
			}
			img, err := g.CaptureRect(rect)
			if err != nil {
				// Кадр теряется, запись продолжается; таймстемпы
				// остаются честными, т.к. берутся от wall-clock.
				vc.dropped++
				continue
			}
			ts := int(time.Since(start) / time.Millisecond)
			if ts <= lastTs {
				// Тики могли накопиться в канале; дубликаты по
				// времени не записываем.
				vc.dropped++
				continue
			}
			lastTs = ts
			vc.frames = append(vc.frames, Frame{Image: img, TimestampMs: ts})
		}
	}
}

// Stop финализирует запись и возвращает накопленные кадры.
func (vc *VideoCapture) Stop() []Frame {
	vc.once.Do(func() { close(vc.stop) })
	<-vc.done
	if vc.cancel {
		return nil
	}
	return vc.frames
}

// Cancel прерывает запись и отбрасывает кадры.
func (vc *VideoCapture) Cancel() {
	vc.cancel = true
	vc.once.Do(func() { close(vc.stop) })
	<-vc.done
	vc.frames = nil
}

// Wait blocks until the capture loop exits (deadline, stop or cancel).
func (vc *VideoCapture) Wait() {
	<-vc.done
}

// Dropped reports how many ticks were skipped because the previous
// grab overran or failed.
func (vc *VideoCapture) Dropped() int {
	select {
	case <-vc.done:
		return vc.dropped
	default:
		return 0
	}
}
