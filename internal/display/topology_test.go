package display

import (
	"image"
	"math"
	"math/rand"
	"testing"
)

func twoMonitorSetup() []Monitor {
	// Основной 4K @ 2.0 слева, обычный 1080p @ 1.0 справа.
	return []Monitor{
		{ID: 0, PhysicalBounds: image.Rect(0, 0, 3840, 2160), DPIScale: 2.0, Primary: true},
		{ID: 1, PhysicalBounds: image.Rect(3840, 0, 5760, 1080), DPIScale: 1.0},
	}
}

func TestNewRejectsEmptyMonitorSet(t *testing.T) {
	if _, err := New(nil); err != ErrTopologyUnavailable {
		t.Fatalf("expected ErrTopologyUnavailable, got %v", err)
	}
}

func TestToLogicalRoundTrip(t *testing.T) {
	topo, err := New(twoMonitorSetup())
	if err != nil {
		t.Fatal(err)
	}

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		for _, mon := range topo.Monitors() {
			p := image.Point{
				X: mon.PhysicalBounds.Min.X + r.Intn(mon.PhysicalBounds.Dx()),
				Y: mon.PhysicalBounds.Min.Y + r.Intn(mon.PhysicalBounds.Dy()),
			}
			back := topo.ToPhysical(topo.ToLogical(p, mon), mon)
			if abs(back.X-p.X) > 1 || abs(back.Y-p.Y) > 1 {
				t.Fatalf("round trip drift: %v -> %v (monitor %d)", p, back, mon.ID)
			}
		}
	}
}

func TestRegionAcrossMonitorsStitchesPerMonitorScale(t *testing.T) {
	topo, err := New(twoMonitorSetup())
	if err != nil {
		t.Fatal(err)
	}

	// Прямоугольник через границу мониторов: 400px на 4K + 400px на 1080p.
	phys := image.Rect(3440, 100, 4240, 500)
	lr, err := topo.RegionAcrossMonitors(phys)
	if err != nil {
		t.Fatal(err)
	}

	// Левая часть: 400/2.0 = 200 логических, правая: 400/1.0 = 400.
	// Наивная конвертация одним масштабом дала бы 400 или 800.
	wantLeft := 3440.0 / 2.0
	if math.Abs(lr.X-wantLeft) > 0.5 {
		t.Errorf("logical X = %f, want %f", lr.X, wantLeft)
	}
	wantRight := 1920.0 + 400.0 // лог. начало второго монитора + 400 из него
	if math.Abs((lr.X+lr.W)-wantRight) > 0.5 {
		t.Errorf("logical right = %f, want %f", lr.X+lr.W, wantRight)
	}
}

func TestRegionAcrossMonitorsOutsideAnyMonitor(t *testing.T) {
	topo, err := New(twoMonitorSetup())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := topo.RegionAcrossMonitors(image.Rect(9000, 9000, 9100, 9100)); err == nil {
		t.Fatal("expected error for region outside all monitors")
	}
}

func TestPhysicalRegionInvertsLogicalRegion(t *testing.T) {
	topo, err := New(twoMonitorSetup())
	if err != nil {
		t.Fatal(err)
	}

	phys := image.Rect(100, 100, 900, 700) // целиком на первом мониторе
	lr, err := topo.RegionAcrossMonitors(phys)
	if err != nil {
		t.Fatal(err)
	}
	back, ok := topo.PhysicalRegion(lr)
	if !ok {
		t.Fatal("PhysicalRegion found no intersection")
	}
	if abs(back.Min.X-phys.Min.X) > 1 || abs(back.Max.X-phys.Max.X) > 1 ||
		abs(back.Min.Y-phys.Min.Y) > 1 || abs(back.Max.Y-phys.Max.Y) > 1 {
		t.Errorf("inverse mismatch: %v -> %v -> %v", phys, lr, back)
	}
}

func TestNearestMonitorForDeadZonePoint(t *testing.T) {
	topo, err := New(twoMonitorSetup())
	if err != nil {
		t.Fatal(err)
	}
	// Точка под вторым монитором (между нижними краями разной высоты).
	m := topo.NearestMonitor(image.Point{X: 4500, Y: 2000})
	if m.ID != 1 {
		t.Errorf("nearest monitor = %d, want 1", m.ID)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
