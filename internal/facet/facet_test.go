package facet

import (
	"fmt"
	"testing"
	"time"

	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// testAssets возвращает фиксированный снимок для тестов.
func testAssets() []*model.Asset {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	title := "Альбом Свадьба"
	return []*model.Asset{
		{
			AssetID:          "a1",
			OriginalFilename: "ceremony.jpg",
			AssetType:        model.TypeRaw,
			Status:           model.StatusReady,
			Size:             1000,
			Tags:             []string{"Wedding", "outdoor"},
			UploadedBy:       "olga",
			CreatedAt:        base,
		},
		{
			AssetID:          "a2",
			OriginalFilename: "portrait.jpg",
			Title:            &title,
			AssetType:        model.TypeWorkInProgress,
			Status:           model.StatusReady,
			Size:             3000,
			Tags:             []string{"wedding"},
			UploadedBy:       "ivan",
			CreatedAt:        base.Add(time.Hour),
		},
		{
			AssetID:          "a3",
			OriginalFilename: "teaser.mp4",
			AssetType:        model.TypeDeliverable,
			Status:           model.StatusProcessing,
			Size:             2000,
			Tags:             nil,
			UploadedBy:       "olga",
			CreatedAt:        base.Add(2 * time.Hour),
		},
	}
}

// TestQuery_EmptyFilter: пустой фильтр возвращает всю коллекцию.
func TestQuery_EmptyFilter(t *testing.T) {
	assets := testAssets()
	result := Query(assets, Filter{}, SortNewest, Page{Limit: 100})

	if result.Counts.Total != 3 {
		t.Errorf("Total = %d, ожидался 3", result.Counts.Total)
	}
	if result.Counts.Filtered != 3 {
		t.Errorf("Filtered = %d, ожидался 3", result.Counts.Filtered)
	}
	if len(result.Page) != 3 {
		t.Errorf("len(Page) = %d, ожидался 3", len(result.Page))
	}
	if result.HasMore {
		t.Error("HasMore = true, ожидался false")
	}
}

// TestQuery_FilterRoundTrip: применение и снятие фильтра возвращает
// исходную страницу.
func TestQuery_FilterRoundTrip(t *testing.T) {
	assets := testAssets()
	original := Query(assets, Filter{}, SortNewest, Page{Limit: 100})
	_ = Query(assets, Filter{Uploaders: []string{"olga"}}, SortNewest, Page{Limit: 100})
	restored := Query(assets, Filter{}, SortNewest, Page{Limit: 100})

	if len(original.Page) != len(restored.Page) {
		t.Fatalf("len после снятия фильтра = %d, ожидался %d", len(restored.Page), len(original.Page))
	}
	for i := range original.Page {
		if original.Page[i].AssetID != restored.Page[i].AssetID {
			t.Errorf("позиция %d: %s != %s", i, restored.Page[i].AssetID, original.Page[i].AssetID)
		}
	}
}

// TestQuery_TagFilter: сценарий из двух ассетов с тегами wedding/outdoor.
func TestQuery_TagFilter(t *testing.T) {
	assets := testAssets()

	// Фильтр по тегу outdoor — только a1
	result := Query(assets, Filter{Tags: []string{"outdoor"}}, SortNewest, Page{Limit: 100})
	if result.Counts.Filtered != 1 {
		t.Fatalf("Filtered = %d, ожидался 1", result.Counts.Filtered)
	}
	if result.Page[0].AssetID != "a1" {
		t.Errorf("AssetID = %s, ожидался a1", result.Page[0].AssetID)
	}

	// Счётчик тега wedding без других активных измерений = 2
	// (подсчёт исключает само измерение тегов)
	if got := result.Counts.Tags["wedding"]; got != 2 {
		t.Errorf("Counts.Tags[wedding] = %d, ожидался 2", got)
	}
}

// TestQuery_TagsCaseInsensitive: сопоставление тегов без учёта регистра.
func TestQuery_TagsCaseInsensitive(t *testing.T) {
	assets := testAssets()
	result := Query(assets, Filter{Tags: []string{"WEDDING"}}, SortNewest, Page{Limit: 100})
	if result.Counts.Filtered != 2 {
		t.Errorf("Filtered = %d, ожидался 2 (теги Wedding и wedding)", result.Counts.Filtered)
	}
}

// TestQuery_CountsExcludeOwnDimension: выбор значения измерения
// не подавляет счётчики других значений того же измерения.
func TestQuery_CountsExcludeOwnDimension(t *testing.T) {
	assets := testAssets()
	result := Query(assets, Filter{Types: []model.AssetType{model.TypeRaw}}, SortNewest, Page{Limit: 100})

	if result.Counts.Filtered != 1 {
		t.Fatalf("Filtered = %d, ожидался 1", result.Counts.Filtered)
	}
	// Счётчики типов считаются без фильтра по типу
	if got := result.Counts.Types[string(model.TypeWorkInProgress)]; got != 1 {
		t.Errorf("Counts.Types[work_in_progress] = %d, ожидался 1", got)
	}
	if got := result.Counts.Types[string(model.TypeDeliverable)]; got != 1 {
		t.Errorf("Counts.Types[deliverable] = %d, ожидался 1", got)
	}
	// А счётчики других измерений — с применённым фильтром по типу
	if got := result.Counts.Uploaders["ivan"]; got != 0 {
		t.Errorf("Counts.Uploaders[ivan] = %d, ожидался 0", got)
	}
	if got := result.Counts.Uploaders["olga"]; got != 1 {
		t.Errorf("Counts.Uploaders[olga] = %d, ожидался 1", got)
	}
}

// TestQuery_AndAcrossDimensions: AND между измерениями, OR внутри.
func TestQuery_AndAcrossDimensions(t *testing.T) {
	assets := testAssets()
	result := Query(assets, Filter{
		Types:     []model.AssetType{model.TypeRaw, model.TypeWorkInProgress},
		Uploaders: []string{"olga"},
	}, SortNewest, Page{Limit: 100})

	if result.Counts.Filtered != 1 {
		t.Fatalf("Filtered = %d, ожидался 1", result.Counts.Filtered)
	}
	if result.Page[0].AssetID != "a1" {
		t.Errorf("AssetID = %s, ожидался a1", result.Page[0].AssetID)
	}
}

// TestQuery_Search: подстрочный поиск по имени, title и тегам.
func TestQuery_Search(t *testing.T) {
	assets := testAssets()

	tests := []struct {
		search string
		want   []string
	}{
		{"CEREMONY", []string{"a1"}},          // имя файла, без учёта регистра
		{"альбом", []string{"a2"}},            // title
		{"wedding", []string{"a2", "a1"}},     // теги (newest: a2 позже a1)
		{".mp4", []string{"a3"}},              // суффикс имени
		{"нет такого", nil},                   // нет совпадений
	}

	for _, tt := range tests {
		result := Query(assets, Filter{Search: tt.search}, SortNewest, Page{Limit: 100})
		if len(result.Page) != len(tt.want) {
			t.Errorf("search %q: len = %d, ожидался %d", tt.search, len(result.Page), len(tt.want))
			continue
		}
		for i, id := range tt.want {
			if result.Page[i].AssetID != id {
				t.Errorf("search %q: позиция %d = %s, ожидался %s", tt.search, i, result.Page[i].AssetID, id)
			}
		}
	}
}

// TestQuery_DateRange: диапазон по createdAt, границы включительно.
func TestQuery_DateRange(t *testing.T) {
	assets := testAssets()
	after := assets[1].CreatedAt // a2
	result := Query(assets, Filter{CreatedAfter: &after}, SortOldest, Page{Limit: 100})

	if result.Counts.Filtered != 2 {
		t.Fatalf("Filtered = %d, ожидался 2", result.Counts.Filtered)
	}
	if result.Page[0].AssetID != "a2" || result.Page[1].AssetID != "a3" {
		t.Errorf("страница = [%s %s], ожидалась [a2 a3]", result.Page[0].AssetID, result.Page[1].AssetID)
	}
}

// TestQuery_SortReversal: largest и smallest дают обратные порядки,
// повторное применение идемпотентно.
func TestQuery_SortReversal(t *testing.T) {
	assets := testAssets()

	largest := Query(assets, Filter{}, SortLargest, Page{Limit: 100})
	smallest := Query(assets, Filter{}, SortSmallest, Page{Limit: 100})

	n := len(largest.Page)
	for i := 0; i < n; i++ {
		if largest.Page[i].AssetID != smallest.Page[n-1-i].AssetID {
			t.Errorf("позиция %d: largest=%s, smallest(reverse)=%s",
				i, largest.Page[i].AssetID, smallest.Page[n-1-i].AssetID)
		}
	}

	again := Query(assets, Filter{}, SortLargest, Page{Limit: 100})
	for i := 0; i < n; i++ {
		if largest.Page[i].AssetID != again.Page[i].AssetID {
			t.Errorf("сортировка не идемпотентна на позиции %d", i)
		}
	}
}

// TestQuery_SortNameTieBreak: равные имена упорядочиваются по id.
func TestQuery_SortNameTieBreak(t *testing.T) {
	base := time.Now().UTC()
	assets := []*model.Asset{
		{AssetID: "b", OriginalFilename: "same.jpg", CreatedAt: base},
		{AssetID: "a", OriginalFilename: "SAME.jpg", CreatedAt: base},
	}
	result := Query(assets, Filter{}, SortNameAsc, Page{Limit: 10})
	if result.Page[0].AssetID != "a" || result.Page[1].AssetID != "b" {
		t.Errorf("tie-break: получено [%s %s], ожидалось [a b]",
			result.Page[0].AssetID, result.Page[1].AssetID)
	}
}

// TestQuery_Pagination: срез страницы и HasMore.
func TestQuery_Pagination(t *testing.T) {
	var assets []*model.Asset
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		assets = append(assets, &model.Asset{
			AssetID:   fmt.Sprintf("a%02d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	// Первая страница
	result := Query(assets, Filter{}, SortOldest, Page{Limit: 4, Offset: 0})
	if len(result.Page) != 4 || !result.HasMore {
		t.Errorf("страница 1: len=%d hasMore=%v, ожидалось 4/true", len(result.Page), result.HasMore)
	}

	// Последняя страница, ровно в limit — HasMore = false
	result = Query(assets, Filter{}, SortOldest, Page{Limit: 5, Offset: 5})
	if len(result.Page) != 5 {
		t.Fatalf("страница 2: len=%d, ожидалось 5", len(result.Page))
	}
	if result.HasMore {
		t.Error("страница ровно в limit без продолжения: HasMore = true, ожидался false")
	}

	// Offset за пределами коллекции
	result = Query(assets, Filter{}, SortOldest, Page{Limit: 5, Offset: 100})
	if len(result.Page) != 0 || result.HasMore {
		t.Errorf("offset за пределами: len=%d hasMore=%v", len(result.Page), result.HasMore)
	}
}
