package system

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

// EnvFFmpegPath переопределяет путь к бинарю ffmpeg.
const EnvFFmpegPath = "SLIPSNAP_FFMPEG_PATH"

var (
	ffmpegOnce sync.Once
	ffmpegPath string
	ffmpegErr  error
)

// FindFFmpeg ищет рабочий ffmpeg: сначала переменная окружения, затем
// PATH. Кандидат считается рабочим, только если отвечает на -version.
// Результат кешируется на весь процесс.
func FindFFmpeg() (string, error) {
	ffmpegOnce.Do(func() {
		var candidates []string
		if env := os.Getenv(EnvFFmpegPath); env != "" {
			candidates = append(candidates, env)
		}
		if p, err := exec.LookPath("ffmpeg"); err == nil {
			candidates = append(candidates, p)
		}

		for _, c := range candidates {
			if exec.Command(c, "-version").Run() == nil {
				ffmpegPath = c
				return
			}
			log.Printf("[!] Кандидат ffmpeg не отвечает на -version: %s", c)
		}
		ffmpegErr = fmt.Errorf("ffmpeg не найден (проверьте PATH или %s)", EnvFFmpegPath)
	})
	return ffmpegPath, ffmpegErr
}

var (
	ffprobeOnce sync.Once
	ffprobePath string
	ffprobeErr  error
)

// FindFFprobe ищет ffprobe: сначала рядом с найденным ffmpeg, затем
// PATH. Нужен для чтения размеров кадра при перекодировании.
func FindFFprobe() (string, error) {
	ffprobeOnce.Do(func() {
		var candidates []string
		if ffmpeg, err := FindFFmpeg(); err == nil {
			candidates = append(candidates, filepath.Join(filepath.Dir(ffmpeg), "ffprobe"))
		}
		if p, err := exec.LookPath("ffprobe"); err == nil {
			candidates = append(candidates, p)
		}

		for _, c := range candidates {
			if exec.Command(c, "-version").Run() == nil {
				ffprobePath = c
				return
			}
		}
		ffprobeErr = fmt.Errorf("ffprobe не найден (обычно ставится вместе с ffmpeg)")
	})
	return ffprobePath, ffprobeErr
}

// BestH264Encoder выбирает аппаратный H264-энкодер, если ffmpeg его
// поддерживает, иначе откатывается на libx264.
func BestH264Encoder() string {
	ffmpeg, err := FindFFmpeg()
	if err != nil {
		return "libx264"
	}

	// Приоритеты:
	// 1. MacOS (VideoToolbox)
	// 2. NVIDIA (NVENC)
	// 3. Software (libx264)
	hardware := []string{"h264_videotoolbox", "h264_nvenc"}

	out, err := exec.Command(ffmpeg, "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, enc := range hardware {
		if strings.Contains(string(out), enc) {
			return enc
		}
	}
	return "libx264"
}

// InitResourceLimits поднимает лимит открытых файлов: параллельный
// экспорт держит открытыми временные файлы кадров и пайпы ffmpeg.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	}
}
