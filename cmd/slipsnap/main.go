package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/slipsnap/slipsnap/internal/capture"
	"github.com/slipsnap/slipsnap/internal/config"
	"github.com/slipsnap/slipsnap/internal/display"
	"github.com/slipsnap/slipsnap/internal/encoder"
	"github.com/slipsnap/slipsnap/internal/export"
	"github.com/slipsnap/slipsnap/internal/library"
	"github.com/slipsnap/slipsnap/internal/payload"
	"github.com/slipsnap/slipsnap/internal/scene"
	"github.com/slipsnap/slipsnap/internal/system"
	"github.com/slipsnap/slipsnap/internal/upload"
)

func main() {
	system.InitResourceLimits()

	clipPtr := flag.Bool("clip", false, "Записать видеофрагмент вместо снимка")
	regionPtr := flag.String("region", "", "Логический регион x,y,w,h (по умолчанию: основной монитор)")
	displayPtr := flag.Int("display", -1, "Захватить монитор целиком по номеру")
	formatPtr := flag.String("format", "auto", "Формат: auto, png, jpg, gif, mp4")
	outputPtr := flag.String("output", "", "Путь результата (если пусто, генерируется автоматически)")
	fpsPtr := flag.Int("fps", 0, "FPS записи и анимированного экспорта (0 - из конфига)")
	durationPtr := flag.Int("duration", 0, "Длительность записи в секундах (0 - из конфига)")
	pastePtr := flag.String("paste", "", "Вставить файл (png/jpg/gif/pdf) поверх снимка")
	lensPtr := flag.String("lens", "", "Добавить лупу в точке x,y (параметры из конфига)")
	textPtr := flag.String("text", "", "Добавить текстовую подпись в левом верхнем углу")
	uploadPtr := flag.Bool("upload", false, "Загрузить результат и показать ссылку")
	qrPtr := flag.Bool("qr", false, "Вместе со ссылкой сохранить QR-код рядом с результатом")
	listPtr := flag.Bool("list-displays", false, "Показать мониторы и выйти")
	collagePtr := flag.Bool("collage", false, "Собрать коллаж из истории снимков и выйти")
	keepGifPtr := flag.Bool("keep-gif", false, "Добавить готовый GIF в библиотеку мемов")
	statsPtr := flag.Bool("stats", false, "Показать отчет о потреблении ресурсов")

	flag.Parse()

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}

	topo, err := display.Enumerate(cfg.DisplayScale)
	if err != nil {
		log.Fatalf("[-] Мониторы недоступны: %v", err)
	}

	if *listPtr {
		listDisplays(topo)
		return
	}

	var monitor *system.ResourceMonitor
	if *statsPtr {
		monitor, err = system.NewResourceMonitor(time.Second)
		if err != nil {
			log.Printf("[!] Монитор ресурсов недоступен: %v", err)
		} else {
			monitor.Start()
			defer func() {
				monitor.Shutdown()
				fmt.Print(monitor.Report())
			}()
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	exporter := export.New()
	exporter.Monitor = monitor

	if *collagePtr {
		runCollage(cfg, *outputPtr)
		return
	}

	format, err := encoder.ParseFormat(*formatPtr)
	if err != nil {
		log.Fatalf("[-] %v", err)
	}

	if format == encoder.FormatAuto && *clipPtr && cfg.VideoFormat != "" {
		if f, perr := encoder.ParseFormat(cfg.VideoFormat); perr == nil {
			format = f
		}
	}

	fps := *fpsPtr
	if fps == 0 {
		fps = cfg.VideoFPS
	}
	durationSec := *durationPtr
	if durationSec == 0 {
		durationSec = cfg.VideoDurationSec
	}

	region, err := resolveRegion(topo, *regionPtr, *displayPtr)
	if err != nil {
		log.Fatalf("[-] Регион захвата: %v", err)
	}

	grabber := capture.ScreenGrabber{}
	outPath := *outputPtr
	if outPath == "" {
		outPath = defaultOutputPath(cfg, *clipPtr, format)
	}

	if *clipPtr {
		runClip(ctx, exporter, topo, grabber, region, format, outPath, fps, durationSec, *keepGifPtr)
	} else {
		opts := stillOptions{
			format:    format,
			outPath:   outPath,
			fps:       fps,
			pastePath: *pastePtr,
			lensSpec:  *lensPtr,
			text:      *textPtr,
		}
		outPath = runStill(ctx, exporter, cfg, topo, grabber, region, opts)
	}

	if *uploadPtr {
		runUpload(ctx, outPath, *qrPtr)
	}
}

func listDisplays(topo *display.Topology) {
	for _, m := range topo.Monitors() {
		primary := ""
		if m.Primary {
			primary = " (основной)"
		}
		b := m.PhysicalBounds
		fmt.Printf("[*] Монитор %d: %dx%d @ (%d,%d), масштаб %.2f%s\n",
			m.ID, b.Dx(), b.Dy(), b.Min.X, b.Min.Y, m.DPIScale, primary)
	}
}

func resolveRegion(topo *display.Topology, regionSpec string, displayID int) (display.Rect, error) {
	if regionSpec != "" {
		return parseRegion(regionSpec)
	}

	mon := topo.Primary()
	if displayID >= 0 {
		found := false
		for _, m := range topo.Monitors() {
			if m.ID == displayID {
				mon, found = m, true
				break
			}
		}
		if !found {
			return display.Rect{}, fmt.Errorf("монитор %d не найден", displayID)
		}
	}
	return topo.RegionAcrossMonitors(mon.PhysicalBounds)
}

func parseRegion(s string) (display.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return display.Rect{}, fmt.Errorf("ожидается x,y,w,h, получено %q", s)
	}
	var vals [4]float64
	for i, p := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%f", &vals[i]); err != nil {
			return display.Rect{}, fmt.Errorf("компонент %q: %v", p, err)
		}
	}
	r := display.Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if r.Empty() {
		return display.Rect{}, fmt.Errorf("пустой регион %q", s)
	}
	return r, nil
}

func defaultOutputPath(cfg *config.Config, clip bool, format encoder.Format) string {
	dir := cfg.LastSaveDir
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = home
		} else {
			dir = "."
		}
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	kind := "shot"
	if clip {
		kind = "clip"
	}
	name := fmt.Sprintf("slipsnap_%s_%s", kind, timestamp)
	if format != encoder.FormatAuto {
		name += format.Ext()
	}
	return filepath.Join(dir, name)
}

type stillOptions struct {
	format    encoder.Format
	outPath   string
	fps       int
	pastePath string
	lensSpec  string
	text      string
}

func runStill(ctx context.Context, exporter *export.Exporter, cfg *config.Config, topo *display.Topology, grabber capture.Grabber, region display.Rect, opts stillOptions) string {
	session, err := capture.CaptureStill(topo, grabber, region)
	if err != nil {
		log.Fatalf("[-] Захват: %v", err)
	}
	fmt.Printf("[*] Снимок %dx%d\n", session.Still.Bounds().Dx(), session.Still.Bounds().Dy())

	sc := scene.NewScene(session.Region.W, session.Region.H, session.Still)

	if opts.pastePath != "" {
		p, err := payload.ImportFile(opts.pastePath, cfg.ImportDPI)
		if err != nil {
			log.Fatalf("[-] Импорт %s: %v", opts.pastePath, err)
		}
		if _, err := sc.Paste(p, display.Point{X: 10, Y: 10}); err != nil {
			log.Fatalf("[-] Вставка: %v", err)
		}
		if p.Animated() {
			fmt.Printf("[*] Вставлен анимированный файл: %d кадров\n", len(p.Frames))
		}
	}

	if opts.lensSpec != "" {
		var x, y float64
		if _, err := fmt.Sscanf(opts.lensSpec, "%f,%f", &x, &y); err != nil {
			log.Fatalf("[-] Лупа: ожидается x,y, получено %q", opts.lensSpec)
		}
		r := float64(cfg.ZoomLensRadius)
		sc.AddZoomLens(display.Rect{X: x - r, Y: y - r, W: 2 * r, H: 2 * r}, cfg.ZoomLensFactor)
	}

	if opts.text != "" {
		sc.AddText(display.Rect{X: 12, Y: 12, W: session.Region.W - 24, H: 24}, scene.TextAttrs{
			Text:   opts.text,
			Color:  color.NRGBA{R: 255, G: 80, B: 80, A: 255},
			SizePx: 18,
		})
	}

	// Снимок уходит в историю до экспорта: даже сорвавшийся экспорт
	// не теряет кадр.
	hist := library.NewHistory(cfg.HistoryKeep)
	if p, err := hist.Save(session.Still); err != nil {
		log.Printf("[!] История: %v", err)
	} else {
		fmt.Printf("[*] История: %s\n", p)
	}

	res, err := exporter.Export(ctx, sc, opts.outPath, export.Options{
		Format:        opts.format,
		FPS:           opts.fps,
		MaxFrames:     cfg.MaxExportFrames,
		JPEGQuality:   cfg.JPEGQuality,
		Workers:       cfg.Workers,
		MinGIFDelayMs: cfg.GIFMinDelayMs,
	})
	if err != nil {
		log.Fatalf("[-] Экспорт: %v", err)
	}
	fmt.Printf("[+++] Успех! Результат: %s\n", res.Path)
	return res.Path
}

func runClip(ctx context.Context, exporter *export.Exporter, topo *display.Topology, grabber capture.Grabber, region display.Rect, format encoder.Format, outPath string, fps, durationSec int, keepGif bool) {
	fmt.Printf("[*] Запись %d сек @ %d FPS (Ctrl+C - закончить раньше)\n", durationSec, fps)

	vc, err := capture.StartVideo(ctx, topo, grabber, region, fps, time.Duration(durationSec)*time.Second)
	if err != nil {
		log.Fatalf("[-] Запись: %v", err)
	}
	vc.Wait()
	frames := vc.Stop()
	if len(frames) == 0 {
		log.Fatalf("[-] Запись не дала ни одного кадра")
	}
	if d := vc.Dropped(); d > 0 {
		fmt.Printf("[!] Пропущено кадров захвата: %d\n", d)
	}
	fmt.Printf("[*] Записано кадров: %d\n", len(frames))

	// Отмена по Ctrl+C останавливает запись, но собранные кадры
	// сохраняются, поэтому экспорт идет с чистым контекстом.
	res, err := exporter.ExportClip(context.Background(), frames, outPath, format, fps)
	if err != nil {
		log.Fatalf("[-] Экспорт записи: %v", err)
	}
	fmt.Printf("[+++] Успех! Результат: %s\n", res.Path)

	if keepGif {
		keepClipGif(context.Background(), res, fps)
	}
}

// keepClipGif кладет копию записи в библиотеку мемов. MP4 сначала
// перекодируется в GIF той же политикой палитры, что и прямой экспорт.
func keepClipGif(ctx context.Context, res *export.Result, fps int) {
	memes, err := library.NewMemeLibrary()
	if err != nil {
		log.Printf("[!] Библиотека мемов: %v", err)
		return
	}

	gifPath := res.Path
	if res.Format == encoder.FormatMP4 {
		tmp, err := os.MkdirTemp("", "slipsnap_gif_")
		if err != nil {
			log.Printf("[!] GIF не добавлен: %v", err)
			return
		}
		defer os.RemoveAll(tmp)
		gifPath = filepath.Join(tmp, "clip.gif")
		if err := encoder.ConvertVideoToGIF(ctx, res.Path, gifPath, fps); err != nil {
			log.Printf("[!] Перекодирование в GIF: %v", err)
			return
		}
	}

	stem := strings.TrimSuffix(filepath.Base(res.Path), filepath.Ext(res.Path))
	saved := memes.TryAddGIF(gifPath, stem)
	if saved.OK {
		fmt.Printf("[*] GIF добавлен в библиотеку: %s\n", saved.TargetPath)
	} else {
		log.Printf("[!] GIF не добавлен: %s", saved.Error)
	}
}

func runCollage(cfg *config.Config, outPath string) {
	hist := library.NewHistory(cfg.HistoryKeep)
	shots, err := hist.List()
	if err != nil || len(shots) == 0 {
		log.Fatalf("[-] История пуста, коллаж собирать не из чего")
	}

	img, err := library.ComposeCollage(shots, 1280)
	if err != nil {
		log.Fatalf("[-] Коллаж: %v", err)
	}

	if outPath == "" {
		outPath = defaultOutputPath(cfg, false, encoder.FormatPNG)
	}
	if err := encoder.EncodeStill(outPath, img, encoder.FormatPNG, cfg.JPEGQuality); err != nil {
		log.Fatalf("[-] Сохранение коллажа: %v", err)
	}
	fmt.Printf("[+++] Успех! Коллаж из %d снимков: %s\n", len(shots), outPath)
}

func runUpload(ctx context.Context, path string, withQR bool) {
	fmt.Printf("[*] Загрузка %s...\n", filepath.Base(path))
	client := upload.NewClient()
	url, err := client.UploadFile(ctx, path)
	if err != nil {
		log.Fatalf("[-] %v", err)
	}
	fmt.Printf("[+++] Ссылка (живет 24 часа): %s\n", url)

	if withQR {
		png, err := upload.QRCodePNG(url, 256)
		if err != nil {
			log.Printf("[!] QR-код: %v", err)
			return
		}
		qrPath := strings.TrimSuffix(path, filepath.Ext(path)) + "_qr.png"
		if err := os.WriteFile(qrPath, png, 0644); err != nil {
			log.Printf("[!] QR-код: %v", err)
			return
		}
		fmt.Printf("[*] QR-код: %s\n", qrPath)
	}
}
