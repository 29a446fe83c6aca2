package export

import (
	"math"
	"sort"

	"github.com/slipsnap/slipsnap/internal/compositor"
	"github.com/slipsnap/slipsnap/internal/scene"
)

// Потолок длительности цикла экспорта. НОК периодов несоизмеримых
// анимаций может взлететь до минут, такой GIF никому не нужен.
const maxTimelineMs = 60000

// timeline — план покадрового рендера анимированного экспорта.
type timeline struct {
	timesMs  []int // моменты рендера каждого кадра
	delaysMs []int // покадровые задержки готового файла
}

// buildTimeline планирует кадры на один общий цикл всех анимаций
// сцены (НОК периодов). Моменты рендера берутся из самих анимаций:
// GIF-объект рендерится ровно в точках смены своих кадров с исходными
// задержками, без пересэмплирования на сетку fps. Равномерная сетка
// добавляется только для процедурных анимаций (Draw, Pulse), у которых
// нет собственной шкалы. Потолок maxFrames прореживает моменты,
// длительность цикла при этом сохраняется.
func buildTimeline(sc *scene.Scene, fps, maxFrames int) timeline {
	cycle := 0
	procedural := false
	var gifSpecs []scene.AnimationSpec
	for _, o := range sc.Objects() {
		if !o.Animation.Animated() {
			continue
		}
		p := compositor.CycleMs(o.Animation)
		if p <= 0 {
			continue
		}
		if cycle == 0 {
			cycle = p
		} else {
			cycle = lcm(cycle, p)
		}
		if o.Animation.Kind == scene.AnimGifLoop {
			gifSpecs = append(gifSpecs, o.Animation)
		} else {
			procedural = true
		}
	}
	if cycle > maxTimelineMs {
		cycle = maxTimelineMs
	}
	if cycle == 0 {
		return timeline{timesMs: []int{0}, delaysMs: []int{0}}
	}
	if fps < 1 {
		fps = 1
	}
	if maxFrames < 1 {
		maxFrames = 1
	}

	moments := map[int]struct{}{0: {}}
	for _, a := range gifSpecs {
		period := compositor.CycleMs(a)
		if period <= 0 {
			continue
		}
		// Шкала GIF разворачивается повторами на весь общий цикл.
		for base := 0; base < cycle; base += period {
			for _, e := range a.Timeline {
				if t := base + e.OffsetMs; t < cycle {
					moments[t] = struct{}{}
				}
			}
		}
	}
	if procedural {
		intervalMs := 1000.0 / float64(fps)
		steps := int(math.Ceil(float64(cycle) / intervalMs))
		for i := 0; i < steps; i++ {
			if t := int(math.Round(float64(i) * intervalMs)); t < cycle {
				moments[t] = struct{}{}
			}
		}
	}

	times := make([]int, 0, len(moments))
	for t := range moments {
		times = append(times, t)
	}
	sort.Ints(times)

	if len(times) > maxFrames {
		kept := make([]int, maxFrames)
		for i := 0; i < maxFrames; i++ {
			kept[i] = times[i*len(times)/maxFrames]
		}
		times = kept
	}

	// Задержки считаются по фактическим соседним моментам, последний
	// кадр добирает остаток цикла до бесшовного повтора.
	delays := make([]int, len(times))
	for i := 0; i < len(times)-1; i++ {
		delays[i] = times[i+1] - times[i]
	}
	delays[len(times)-1] = cycle - times[len(times)-1]

	return timeline{timesMs: times, delaysMs: delays}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	l := a / gcd(a, b) * b
	if l > maxTimelineMs || l <= 0 {
		return maxTimelineMs
	}
	return l
}
