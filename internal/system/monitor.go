package system

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type resourceSample struct {
	at         time.Time
	cpuPercent float64
	memBytes   uint64
	memPercent float32
}

type eventRecord struct {
	at       time.Time
	duration time.Duration
}

// ResourceMonitor периодически снимает потребление CPU и памяти
// текущего процесса и накапливает длительности именованных операций
// (захват, рендер, кодирование). Итог — текстовый отчет о сессии.
type ResourceMonitor struct {
	proc     *process.Process
	interval time.Duration
	start    time.Time

	mu      sync.Mutex
	samples []resourceSample
	events  map[string][]eventRecord
	counts  map[string]int

	stop chan struct{}
	done chan struct{}
}

// NewResourceMonitor создает монитор с интервалом опроса interval.
func NewResourceMonitor(interval time.Duration) (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("доступ к собственному процессу: %w", err)
	}
	// Первое чтение CPU всегда нулевое, прогреваем счетчик.
	proc.CPUPercent()

	return &ResourceMonitor{
		proc:     proc,
		interval: interval,
		start:    time.Now(),
		events:   make(map[string][]eventRecord),
		counts:   make(map[string]int),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start запускает фоновый опрос. Повторный вызов не поддерживается.
func (m *ResourceMonitor) Start() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.collect()
			}
		}
	}()
}

// Shutdown останавливает опрос и дожидается фоновой горутины.
func (m *ResourceMonitor) Shutdown() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.done
}

func (m *ResourceMonitor) collect() {
	cpu, err := m.proc.CPUPercent()
	if err != nil {
		return
	}
	mem, err := m.proc.MemoryInfo()
	if err != nil {
		return
	}
	memPct, _ := m.proc.MemoryPercent()

	m.mu.Lock()
	m.samples = append(m.samples, resourceSample{
		at:         time.Now(),
		cpuPercent: cpu,
		memBytes:   mem.RSS,
		memPercent: memPct,
	})
	m.mu.Unlock()
}

// IncrementCounter увеличивает именованный счетчик операций.
func (m *ResourceMonitor) IncrementCounter(name string) {
	m.mu.Lock()
	m.counts[name]++
	m.mu.Unlock()
}

// Measure замеряет длительность операции: вызвать перед началом,
// вернувшуюся функцию — по завершении.
func (m *ResourceMonitor) Measure(name string) func() {
	start := time.Now()
	return func() {
		m.mu.Lock()
		m.events[name] = append(m.events[name], eventRecord{at: time.Now(), duration: time.Since(start)})
		m.mu.Unlock()
	}
}

// Report собирает текстовый отчет по накопленным данным.
func (m *ResourceMonitor) Report() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "--- [SLIPSNAP USAGE REPORT] ---\n")
	fmt.Fprintf(&b, "Session: %.1fs\n", time.Since(m.start).Seconds())

	if len(m.samples) > 0 {
		var cpuSum, cpuPeak float64
		var memPeak uint64
		for _, s := range m.samples {
			cpuSum += s.cpuPercent
			if s.cpuPercent > cpuPeak {
				cpuPeak = s.cpuPercent
			}
			if s.memBytes > memPeak {
				memPeak = s.memBytes
			}
		}
		fmt.Fprintf(&b, "CPU avg: %.1f%% | peak: %.1f%%\n", cpuSum/float64(len(m.samples)), cpuPeak)
		fmt.Fprintf(&b, "Memory peak: %.1f MB\n", float64(memPeak)/(1024*1024))
	}

	names := make([]string, 0, len(m.events))
	for name := range m.events {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		recs := m.events[name]
		var total time.Duration
		for _, r := range recs {
			total += r.duration
		}
		avg := total / time.Duration(len(recs))
		fmt.Fprintf(&b, "%s: %d раз, среднее %.2fs\n", name, len(recs), avg.Seconds())
	}

	counters := make([]string, 0, len(m.counts))
	for name := range m.counts {
		counters = append(counters, name)
	}
	sort.Strings(counters)
	for _, name := range counters {
		fmt.Fprintf(&b, "%s: %d\n", name, m.counts[name])
	}
	fmt.Fprintf(&b, "-------------------------------\n")
	return b.String()
}

// SaveReport пишет отчет в файл.
func (m *ResourceMonitor) SaveReport(path string) error {
	return os.WriteFile(path, []byte(m.Report()), 0644)
}
