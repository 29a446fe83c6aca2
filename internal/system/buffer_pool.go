package system

import (
	"image"
	"sync"
)

// ImagePool переиспользует буферы *image.RGBA одинакового размера,
// чтобы покадровый рендер анимированного экспорта не раздувал кучу.
type ImagePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

var globalPool = &ImagePool{
	pools: make(map[image.Point]*sync.Pool),
}

// GetImage возвращает буфер размера rect из пула или создает новый.
// Содержимое буфера не определено, вызывающий обязан перезаписать его
// целиком (или взять GetClearImage).
func GetImage(rect image.Rectangle) *image.RGBA {
	return globalPool.Get(rect)
}

// GetClearImage возвращает буфер с обнуленными пикселями.
func GetClearImage(rect image.Rectangle) *image.RGBA {
	img := globalPool.Get(rect)
	clear(img.Pix)
	return img
}

// PutImage возвращает буфер в пул.
func PutImage(img *image.RGBA) {
	globalPool.Put(img)
}

func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	size := image.Pt(rect.Dx(), rect.Dy())
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double check
		pool, exists = p.pools[size]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewRGBA(image.Rectangle{Max: size})
				},
			}
			p.pools[size] = pool
		}
		p.mu.Unlock()
	}

	img := pool.Get().(*image.RGBA)
	if img.Rect != rect {
		// Пул хранит буферы с нулевым началом координат, подгоняем
		// видимый прямоугольник под запрошенный.
		img = &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: rect}
	}
	return img
}

func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	size := image.Pt(img.Rect.Dx(), img.Rect.Dy())
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()
	if exists {
		pool.Put(img)
	}
}
