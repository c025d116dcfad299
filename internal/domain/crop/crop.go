// Пакет crop — геометрия кадрирования по точке фокуса.
//
// Вычисляет прямоугольник видимой области для произвольного целевого
// соотношения сторон так, чтобы точка фокуса оставалась в кадре.
// Все результаты — в процентах (0–100) относительно исходного изображения.
//
// Пакет никогда не возвращает ошибку: некорректная геометрия — это
// косметическая проблема, вызывающая сторона показывает изображение
// без кадрирования (nil).
package crop

import (
	"strconv"
	"strings"
)

// Rect — прямоугольник кадрирования в процентах от исходного изображения.
// Инвариант: 0 ≤ Left, Left+Width ≤ 100, 0 ≤ Top, Top+Height ≤ 100.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AspectAuto — специальное значение целевого соотношения: без кадрирования.
const AspectAuto = "auto"

// ParseAspect разбирает строку вида "w:h" в числовое соотношение w/h.
// Возвращает (ratio, true) при успехе. Для "auto", пустой строки,
// нечисловых и неположительных компонентов — (0, false).
func ParseAspect(aspect string) (float64, bool) {
	aspect = strings.TrimSpace(aspect)
	if aspect == "" || aspect == AspectAuto {
		return 0, false
	}

	parts := strings.Split(aspect, ":")
	if len(parts) != 2 {
		return 0, false
	}

	w, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || w <= 0 {
		return 0, false
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || h <= 0 {
		return 0, false
	}

	return w / h, true
}

// Compute вычисляет прямоугольник кадрирования.
//
// Параметры:
//   - sourceWidth, sourceHeight — размеры исходного изображения (пиксели)
//   - targetAspect — целевое соотношение "w:h" или "auto"
//   - focalX, focalY — нормализованная точка фокуса [0,1]
//
// Алгоритм: если исходник шире целевого соотношения — кадр занимает всю
// высоту, ширина уменьшается пропорционально; иначе наоборот. Затем кадр
// центрируется на точке фокуса и прижимается к границам, чтобы не выйти
// за пределы изображения.
//
// Возвращает nil (без кадрирования) при нулевой/отрицательной площади
// исходника, некорректном targetAspect или "auto".
func Compute(sourceWidth, sourceHeight int, targetAspect string, focalX, focalY float64) *Rect {
	if sourceWidth <= 0 || sourceHeight <= 0 {
		return nil
	}

	target, ok := ParseAspect(targetAspect)
	if !ok {
		return nil
	}

	sourceAspect := float64(sourceWidth) / float64(sourceHeight)

	var width, height float64
	if sourceAspect > target {
		// Исходник шире цели: высота полная, ширина урезается
		height = 100
		width = target / sourceAspect * 100
	} else {
		// Исходник уже или равен цели: ширина полная, высота урезается
		width = 100
		height = sourceAspect / target * 100
	}

	left := clamp(focalX*100-width/2, 0, 100-width)
	top := clamp(focalY*100-height/2, 0, 100-height)

	return &Rect{
		Left:   left,
		Top:    top,
		Width:  width,
		Height: height,
	}
}

// clamp ограничивает v диапазоном [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
