package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	stddraw "image/draw"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/slipsnap/slipsnap/internal/capture"
	"github.com/slipsnap/slipsnap/internal/system"
)

// StreamEncoder кормит ffmpeg сырыми RGBA-кадрами через stdin и пишет
// MP4. Кадры должны иметь одинаковый размер и идти с постоянной
// частотой.
type StreamEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	width, height int
	finished      bool
}

// NewStreamEncoder запускает процесс ffmpeg. Возвращает
// ErrBackendUnavailable, если бинарь не найден или не стартует.
func NewStreamEncoder(ctx context.Context, width, height, fps int, outputPath string) (*StreamEncoder, error) {
	ffmpeg, err := system.FindFFmpeg()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("директория вывода: %w", err)
	}

	encoderName := system.BestH264Encoder()
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		"-an",
		"-c:v", encoderName,
	}
	if encoderName == "libx264" {
		args = append(args, "-preset", "veryfast")
	}
	args = append(args,
		// yuv420p требует четных размеров кадра, добиваем пикселем.
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outputPath,
	)

	e := &StreamEncoder{width: width, height: height}
	e.cmd = exec.CommandContext(ctx, ffmpeg, args...)
	e.cmd.Stderr = &e.stderr

	e.stdin, err = e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: запуск: %v", ErrBackendUnavailable, err)
	}
	return e, nil
}

// WriteFrame передает один кадр. Размер кадра обязан совпадать с
// заявленным при создании энкодера.
func (e *StreamEncoder) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != e.width || b.Dy() != e.height {
		return fmt.Errorf("кадр %dx%d вместо %dx%d", b.Dx(), b.Dy(), e.width, e.height)
	}
	if img.Stride != b.Dx()*4 || b.Min.X != 0 || b.Min.Y != 0 {
		tight := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		stddraw.Draw(tight, tight.Bounds(), img, b.Min, stddraw.Src)
		img = tight
	}
	if _, err := e.stdin.Write(img.Pix); err != nil {
		return fmt.Errorf("запись кадра в ffmpeg: %w", err)
	}
	return nil
}

// Finalize закрывает поток и дожидается ffmpeg.
func (e *StreamEncoder) Finalize() error {
	if e.finished {
		return nil
	}
	e.finished = true
	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		tail := e.stderr.String()
		if len(tail) > 600 {
			tail = tail[len(tail)-600:]
		}
		return fmt.Errorf("ffmpeg завершился с ошибкой: %w\n%s", err, strings.TrimSpace(tail))
	}
	return nil
}

// Abort прерывает кодирование и убивает процесс.
func (e *StreamEncoder) Abort() {
	if e.finished {
		return
	}
	e.finished = true
	e.stdin.Close()
	if e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.cmd.Wait()
}

// EncodeVideo сохраняет равномерную последовательность кадров в MP4.
func EncodeVideo(ctx context.Context, path string, frames []*image.RGBA, fps int) error {
	if len(frames) == 0 {
		return fmt.Errorf("видео без кадров")
	}
	b := frames[0].Bounds()
	enc, err := NewStreamEncoder(ctx, b.Dx(), b.Dy(), fps, path)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := enc.WriteFrame(f); err != nil {
			enc.Abort()
			return err
		}
	}
	return enc.Finalize()
}

// ResampleToGrid раскладывает кадры записи с плавающими метками
// времени на равномерную сетку частоты fps: в каждую ячейку попадает
// ближайший по времени реальный кадр. Пропуски захвата закрываются
// повтором соседнего кадра, лишние кадры отбрасываются.
func ResampleToGrid(frames []capture.Frame, fps int) []*image.RGBA {
	if len(frames) == 0 || fps <= 0 {
		return nil
	}
	durationMs := frames[len(frames)-1].TimestampMs
	stepMs := 1000.0 / float64(fps)

	var out []*image.RGBA
	idx := 0
	for t := 0.0; t <= float64(durationMs); t += stepMs {
		for idx+1 < len(frames) {
			cur := absF(float64(frames[idx].TimestampMs) - t)
			next := absF(float64(frames[idx+1].TimestampMs) - t)
			if next >= cur {
				break
			}
			idx++
		}
		out = append(out, frames[idx].Image)
	}
	if len(out) == 0 {
		out = append(out, frames[0].Image)
	}
	return out
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ConvertVideoToGIF перекодирует видео в GIF через декодирование
// кадров и EncodeGIF: палитра и тайминг всегда совпадают с прямым
// экспортом GIF.
func ConvertVideoToGIF(ctx context.Context, sourceVideo, targetGIF string, fps int) error {
	if _, err := os.Stat(sourceVideo); err != nil {
		return fmt.Errorf("исходное видео не найдено: %w", err)
	}
	if fps < 1 {
		fps = 1
	}
	if fps > 24 {
		fps = 24
	}

	frames, err := DecodeVideoFrames(ctx, sourceVideo, fps)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("видео не содержит кадров")
	}

	delays := make([]int, len(frames))
	for i := range delays {
		delays[i] = 1000 / fps
	}
	return EncodeGIF(targetGIF, frames, delays, true)
}

// DecodeVideoFrames читает видео через ffmpeg, снимая кадры на
// равномерной сетке fps. Кадры приходят сырым RGBA-потоком по stdout.
func DecodeVideoFrames(ctx context.Context, sourceVideo string, fps int) ([]*image.RGBA, error) {
	ffmpeg, err := system.FindFFmpeg()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	width, height, err := probeVideoSize(ctx, sourceVideo)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", sourceVideo,
		"-vf", fmt.Sprintf("fps=%d", fps),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: запуск: %v", ErrBackendUnavailable, err)
	}

	frameSize := width * height * 4
	var frames []*image.RGBA
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(stdout, buf); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				// Хвост неполного кадра отбрасывается.
				break
			}
			cmd.Process.Kill()
			cmd.Wait()
			return nil, fmt.Errorf("чтение кадров из ffmpeg: %w", err)
		}
		frames = append(frames, &image.RGBA{
			Pix:    buf,
			Stride: width * 4,
			Rect:   image.Rect(0, 0, width, height),
		})
	}
	if err := cmd.Wait(); err != nil {
		tail := stderr.String()
		if len(tail) > 600 {
			tail = tail[len(tail)-600:]
		}
		return nil, fmt.Errorf("ffmpeg завершился с ошибкой: %w\n%s", err, strings.TrimSpace(tail))
	}
	return frames, nil
}

func probeVideoSize(ctx context.Context, path string) (width, height int, err error) {
	ffprobe, err := system.FindFFprobe()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	out, err := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0",
		path,
	).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe не смог прочитать %s: %w", path, err)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%d,%d", &width, &height); err != nil {
		return 0, 0, fmt.Errorf("неожиданный вывод ffprobe: %q", out)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("некорректные размеры видео %dx%d", width, height)
	}
	return width, height, nil
}
