// Пакет facet — фасетный движок каталога ассетов.
//
// Работает над консистентным снимком ассетов проекта, загруженным из
// repository: снимок не видит мутаций, выполняющихся параллельно запросу.
//
// Семантика фильтра: AND между измерениями, OR внутри измерения.
// Счётчики фасетов считаются с применением всех ОСТАЛЬНЫХ активных
// измерений, но без измерения, по которому идёт подсчёт — выбор
// не подавляет собственные счётчики (политика exclude-self).
//
// Сложность: один проход по снимку, O(N·K) при K активных значениях фильтра.
package facet

import (
	"sort"
	"strings"
	"time"

	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// Sort — порядок сортировки результатов.
type Sort string

const (
	// SortNewest — по createdAt, новые первыми (по умолчанию)
	SortNewest Sort = "newest"
	// SortOldest — по createdAt, старые первыми
	SortOldest Sort = "oldest"
	// SortLargest — по размеру файла, большие первыми
	SortLargest Sort = "largest"
	// SortSmallest — по размеру файла, маленькие первыми
	SortSmallest Sort = "smallest"
	// SortNameAsc — по имени, без учёта регистра, по возрастанию
	SortNameAsc Sort = "name_asc"
	// SortNameDesc — по имени, без учёта регистра, по убыванию
	SortNameDesc Sort = "name_desc"
)

// ParseSort преобразует строку в Sort. Пустая строка — SortNewest.
func ParseSort(s string) (Sort, bool) {
	switch Sort(s) {
	case "":
		return SortNewest, true
	case SortNewest, SortOldest, SortLargest, SortSmallest, SortNameAsc, SortNameDesc:
		return Sort(s), true
	default:
		return "", false
	}
}

// Filter — активные измерения фильтрации каталога.
// Пустое измерение (nil/пустая строка) не применяется.
type Filter struct {
	// Types — фильтр по классификации (OR внутри)
	Types []model.AssetType
	// Statuses — фильтр по статусу обработки (OR внутри)
	Statuses []model.IngestStatus
	// Tags — фильтр по тегам; сопоставление без учёта регистра (OR внутри)
	Tags []string
	// Uploaders — фильтр по загрузившим (OR внутри)
	Uploaders []string
	// Search — подстрока без учёта регистра по имени файла, title, caption и тегам
	Search string
	// CreatedAfter, CreatedBefore — диапазон по createdAt (включительно)
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Empty сообщает, активно ли хотя бы одно измерение.
func (f Filter) Empty() bool {
	return len(f.Types) == 0 && len(f.Statuses) == 0 && len(f.Tags) == 0 &&
		len(f.Uploaders) == 0 && f.Search == "" &&
		f.CreatedAfter == nil && f.CreatedBefore == nil
}

// Page — окно пагинации [Offset, Offset+Limit).
type Page struct {
	Limit  int
	Offset int
}

// Counts — счётчики результата запроса.
type Counts struct {
	// Total — размер коллекции до фильтрации
	Total int `json:"total"`
	// Filtered — размер результата после фильтрации, до пагинации
	Filtered int `json:"filtered"`
	// Types, Statuses, Tags, Uploaders — счётчики значений по измерениям
	Types     map[string]int `json:"types"`
	Statuses  map[string]int `json:"statuses"`
	Tags      map[string]int `json:"tags"`
	Uploaders map[string]int `json:"uploaders"`
}

// Result — результат фасетного запроса.
type Result struct {
	// Page — срез результата [offset, offset+limit) после сортировки
	Page []*model.Asset
	// Counts — счётчики по измерениям
	Counts Counts
	// HasMore — есть ли результаты за пределами текущей страницы
	HasMore bool
}

// dimensionPass — флаги прохождения ассетом каждого измерения фильтра.
type dimensionPass struct {
	byType     bool
	byStatus   bool
	byTag      bool
	byUploader bool
	bySearch   bool
	byDate     bool
}

func (p dimensionPass) all() bool {
	return p.byType && p.byStatus && p.byTag && p.byUploader && p.bySearch && p.byDate
}

// Query выполняет фасетный запрос над снимком ассетов.
// Снимок должен быть консистентным на момент вызова; Query его не изменяет.
func Query(assets []*model.Asset, filter Filter, sortOrder Sort, page Page) Result {
	// Канонизация значений фильтра — один раз на запрос
	typeSet := make(map[model.AssetType]bool, len(filter.Types))
	for _, t := range filter.Types {
		typeSet[t] = true
	}
	statusSet := make(map[model.IngestStatus]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statusSet[s] = true
	}
	tagSet := make(map[string]bool, len(filter.Tags))
	for _, tag := range filter.Tags {
		tagSet[model.CanonicalTag(tag)] = true
	}
	uploaderSet := make(map[string]bool, len(filter.Uploaders))
	for _, u := range filter.Uploaders {
		uploaderSet[u] = true
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	counts := Counts{
		Total:     len(assets),
		Types:     make(map[string]int),
		Statuses:  make(map[string]int),
		Tags:      make(map[string]int),
		Uploaders: make(map[string]int),
	}

	// Один проход: вычисляем флаги измерений, собираем результат и счётчики
	var matched []*model.Asset
	for _, a := range assets {
		pass := dimensionPass{
			byType:     len(typeSet) == 0 || typeSet[a.AssetType],
			byStatus:   len(statusSet) == 0 || statusSet[a.Status],
			byTag:      len(tagSet) == 0 || anyTagMatches(a.Tags, tagSet),
			byUploader: len(uploaderSet) == 0 || uploaderSet[a.UploadedBy],
			bySearch:   search == "" || matchesSearch(a, search),
			byDate:     matchesDateRange(a.CreatedAt, filter.CreatedAfter, filter.CreatedBefore),
		}

		if pass.all() {
			matched = append(matched, a)
		}

		// Счётчики: измерение не подавляет собственные значения
		if pass.byStatus && pass.byTag && pass.byUploader && pass.bySearch && pass.byDate {
			counts.Types[string(a.AssetType)]++
		}
		if pass.byType && pass.byTag && pass.byUploader && pass.bySearch && pass.byDate {
			counts.Statuses[string(a.Status)]++
		}
		if pass.byType && pass.byStatus && pass.byUploader && pass.bySearch && pass.byDate {
			for _, tag := range a.Tags {
				counts.Tags[model.CanonicalTag(tag)]++
			}
		}
		if pass.byType && pass.byStatus && pass.byTag && pass.bySearch && pass.byDate {
			counts.Uploaders[a.UploadedBy]++
		}
	}

	counts.Filtered = len(matched)

	sortAssets(matched, sortOrder)

	paged := slicePage(matched, page)

	return Result{
		Page:    paged,
		Counts:  counts,
		HasMore: page.Offset+len(paged) < counts.Filtered,
	}
}

// anyTagMatches проверяет, содержит ли ассет хотя бы один из искомых тегов.
func anyTagMatches(tags []string, wanted map[string]bool) bool {
	for _, tag := range tags {
		if wanted[model.CanonicalTag(tag)] {
			return true
		}
	}
	return false
}

// matchesSearch — подстрочный поиск без учёта регистра
// по имени файла, title, caption и тегам.
func matchesSearch(a *model.Asset, search string) bool {
	if strings.Contains(strings.ToLower(a.OriginalFilename), search) {
		return true
	}
	if a.Title != nil && strings.Contains(strings.ToLower(*a.Title), search) {
		return true
	}
	if a.Caption != nil && strings.Contains(strings.ToLower(*a.Caption), search) {
		return true
	}
	for _, tag := range a.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}

// matchesDateRange проверяет попадание createdAt в диапазон (границы включительно).
func matchesDateRange(createdAt time.Time, after, before *time.Time) bool {
	if after != nil && createdAt.Before(*after) {
		return false
	}
	if before != nil && createdAt.After(*before) {
		return false
	}
	return true
}

// sortAssets сортирует результат на месте.
// Для детерминизма равные элементы упорядочиваются по AssetID по возрастанию.
func sortAssets(assets []*model.Asset, order Sort) {
	less := func(a, b *model.Asset) bool {
		switch order {
		case SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case SortLargest:
			if a.Size != b.Size {
				return a.Size > b.Size
			}
		case SortSmallest:
			if a.Size != b.Size {
				return a.Size < b.Size
			}
		case SortNameAsc:
			an, bn := strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName())
			if an != bn {
				return an < bn
			}
		case SortNameDesc:
			an, bn := strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName())
			if an != bn {
				return an > bn
			}
		default: // SortNewest
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.AssetID < b.AssetID
	}

	sort.SliceStable(assets, func(i, j int) bool {
		return less(assets[i], assets[j])
	})
}

// slicePage возвращает срез [offset, offset+limit) результата.
func slicePage(assets []*model.Asset, page Page) []*model.Asset {
	if page.Limit <= 0 || page.Offset < 0 || page.Offset >= len(assets) {
		if page.Limit <= 0 && page.Offset == 0 {
			return assets
		}
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(assets) {
		end = len(assets)
	}
	return assets[page.Offset:end]
}
