// Package library хранит локальные артефакты пользователя: историю
// последних снимков, коллекцию мемов и сборку коллажей.
package library

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// История живет во временной директории: это кеш последних снимков,
// а не архив. Потеря при перезагрузке допустима.
const defaultHistoryKeep = 10

// History — каталог последних снимков с автоматической чисткой.
type History struct {
	Dir  string
	Keep int
}

// NewHistory создает историю в системной временной директории.
func NewHistory(keep int) *History {
	if keep <= 0 {
		keep = defaultHistoryKeep
	}
	return &History{
		Dir:  filepath.Join(os.TempDir(), "slipsnap_history"),
		Keep: keep,
	}
}

// Save кладет снимок в историю и вычищает лишние старые файлы.
func (h *History) Save(img *image.RGBA) (string, error) {
	if err := os.MkdirAll(h.Dir, 0755); err != nil {
		return "", fmt.Errorf("директория истории: %w", err)
	}

	path := filepath.Join(h.Dir, fmt.Sprintf("shot_%s.png", strings.ReplaceAll(uuid.NewString(), "-", "")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("файл истории: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("кодирование снимка: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	h.prune()
	return path, nil
}

// List возвращает снимки истории, новые первыми.
func (h *History) List() ([]string, error) {
	entries, err := os.ReadDir(h.Dir)
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
		if e.IsDir() || !isHistoryImage(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, dated{filepath.Join(h.Dir, e.Name()), info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod > files[j].mod })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// prune удаляет все снимки сверх лимита, начиная с самых старых.
// Ошибки удаления не фатальны: файл мог уйти из-под ног.
func (h *History) prune() {
	files, err := h.List()
	if err != nil {
		return
	}
	for _, f := range files[min(h.Keep, len(files)):] {
		os.Remove(f)
	}
}

func isHistoryImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
