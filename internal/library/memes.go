package library

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

// Картинки крупнее этого размера по большей стороне ужимаются при
// добавлении в коллекцию.
const maxMemeSize = 512

// MemeLibrary — постоянная коллекция картинок и GIF для вставки в
// снимки.
type MemeLibrary struct {
	Dir string
}

// NewMemeLibrary открывает коллекцию в домашней директории.
func NewMemeLibrary() (*MemeLibrary, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("домашняя директория: %w", err)
	}
	return &MemeLibrary{Dir: filepath.Join(home, ".slipsnap", "memes")}, nil
}

// SaveImage кладет статичную картинку в коллекцию под именем stem
// (или случайным). Существующие файлы не перезаписываются.
func (m *MemeLibrary) SaveImage(img *image.RGBA, stem string) (string, error) {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return "", fmt.Errorf("директория коллекции: %w", err)
	}

	prepared := shrinkToLimit(img)
	path, err := m.freePath(stem, ".png")
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("файл коллекции: %w", err)
	}
	if err := png.Encode(f, prepared); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("кодирование: %w", err)
	}
	return path, f.Close()
}

// AddGIF проверяет и копирует GIF в коллекцию. Проверка двойная:
// сигнатура GIF8 в начале файла и пробное декодирование заголовка.
// Файл с расширением .gif, но другим содержимым, отклоняется.
func (m *MemeLibrary) AddGIF(sourcePath, stem string) (string, error) {
	if strings.ToLower(filepath.Ext(sourcePath)) != ".gif" {
		return "", fmt.Errorf("в коллекцию этим путем добавляются только GIF")
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("GIF файл не найден: %w", err)
	}
	if !bytes.HasPrefix(data, []byte("GIF8")) {
		return "", fmt.Errorf("файл имеет расширение .gif, но не является GIF")
	}
	if _, err := gif.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("не удалось проверить GIF: %w", err)
	}

	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return "", fmt.Errorf("директория коллекции: %w", err)
	}
	if stem == "" {
		base := filepath.Base(sourcePath)
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	path, err := m.freePath(stem, ".gif")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("копирование GIF: %w", err)
	}
	return path, nil
}

// GIFSaveResult — исход безопасного добавления GIF.
type GIFSaveResult struct {
	OK         bool
	TargetPath string
	Error      string
}

// TryAddGIF — обертка AddGIF для сценариев, где сбой импорта не
// должен прерывать основной поток (сохранение записи экрана).
func (m *MemeLibrary) TryAddGIF(sourcePath, stem string) GIFSaveResult {
	path, err := m.AddGIF(sourcePath, stem)
	if err != nil {
		return GIFSaveResult{Error: err.Error()}
	}
	return GIFSaveResult{OK: true, TargetPath: path}
}

// List возвращает файлы коллекции, новые первыми.
func (m *MemeLibrary) List() ([]string, error) {
	entries, err := os.ReadDir(m.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	type dated struct {
		path string
		mod  int64
	}
	var files []dated
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".png" && ext != ".gif") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, dated{filepath.Join(m.Dir, e.Name()), info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod > files[j].mod })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// Delete удаляет файлы коллекции. Пути вне директории коллекции
// игнорируются.
func (m *MemeLibrary) Delete(paths []string) {
	for _, p := range paths {
		if filepath.Dir(p) != m.Dir {
			continue
		}
		os.Remove(p)
	}
}

// freePath подбирает незанятое имя: stem.ext, stem_1.ext, ...
func (m *MemeLibrary) freePath(stem, ext string) (string, error) {
	base := normalizeName(stem)
	if base == "" {
		base = "meme_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	candidate := filepath.Join(m.Dir, base+ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
		candidate = filepath.Join(m.Dir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}
}

func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._-")
}

func shrinkToLimit(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	maxDim := b.Dx()
	if b.Dy() > maxDim {
		maxDim = b.Dy()
	}
	if maxDim <= maxMemeSize {
		return img
	}
	scale := float64(maxMemeSize) / float64(maxDim)
	w := int(float64(b.Dx())*scale + 0.5)
	h := int(float64(b.Dy())*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}
