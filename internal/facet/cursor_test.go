package facet

import (
	"fmt"
	"testing"
	"time"

	"github.com/bigkaa/gomediastore/internal/domain/model"
)

func cursorAssets(n int) []*model.Asset {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var assets []*model.Asset
	for i := 0; i < n; i++ {
		assets = append(assets, &model.Asset{
			AssetID:   fmt.Sprintf("a%02d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return assets
}

// TestCursor_LoadMore: накопление страниц без дублей и пропусков.
func TestCursor_LoadMore(t *testing.T) {
	assets := cursorAssets(7)
	cur := NewCursor(3)

	cur.Absorb(Query(assets, Filter{}, SortOldest, cur.Window()))
	if len(cur.Items()) != 3 {
		t.Fatalf("после первой страницы len = %d, ожидался 3", len(cur.Items()))
	}
	if !cur.HasMore() {
		t.Fatal("HasMore = false, ожидался true")
	}

	cur.LoadMore()
	cur.Absorb(Query(assets, Filter{}, SortOldest, cur.Window()))
	if len(cur.Items()) != 6 {
		t.Fatalf("после второй страницы len = %d, ожидался 6", len(cur.Items()))
	}

	cur.LoadMore()
	cur.Absorb(Query(assets, Filter{}, SortOldest, cur.Window()))
	items := cur.Items()
	if len(items) != 7 {
		t.Fatalf("после третьей страницы len = %d, ожидался 7", len(items))
	}
	if cur.HasMore() {
		t.Error("после последней страницы HasMore = true, ожидался false")
	}

	// Порядок сохранён, дублей нет
	seen := make(map[string]bool, len(items))
	for i, a := range items {
		want := fmt.Sprintf("a%02d", i)
		if a.AssetID != want {
			t.Errorf("позиция %d: %s, ожидался %s", i, a.AssetID, want)
		}
		if seen[a.AssetID] {
			t.Errorf("дубликат %s", a.AssetID)
		}
		seen[a.AssetID] = true
	}
}

// TestCursor_LoadMoreExhausted: LoadMore без продолжения не меняет окно.
func TestCursor_LoadMoreExhausted(t *testing.T) {
	assets := cursorAssets(2)
	cur := NewCursor(5)
	cur.Absorb(Query(assets, Filter{}, SortOldest, cur.Window()))

	before := cur.Window()
	cur.LoadMore()
	after := cur.Window()
	if before != after {
		t.Errorf("окно изменилось после исчерпания: %+v -> %+v", before, after)
	}
}

// TestCursor_Reset: смена фильтра начинается с первой страницы.
func TestCursor_Reset(t *testing.T) {
	assets := cursorAssets(7)
	cur := NewCursor(3)

	cur.Absorb(Query(assets, Filter{}, SortOldest, cur.Window()))
	cur.LoadMore()
	cur.Absorb(Query(assets, Filter{}, SortOldest, cur.Window()))

	cur.Reset()
	w := cur.Window()
	if w.Offset != 0 {
		t.Fatalf("Offset после Reset = %d, ожидался 0", w.Offset)
	}
	cur.Absorb(Query(assets, Filter{}, SortOldest, w))
	if len(cur.Items()) != 3 {
		t.Errorf("после Reset len = %d, ожидался 3", len(cur.Items()))
	}
	if cur.Items()[0].AssetID != "a00" {
		t.Errorf("первый элемент после Reset = %s, ожидался a00", cur.Items()[0].AssetID)
	}
}

// TestNewCursor_InvalidLimit: неположительный limit приводится к минимальному.
func TestNewCursor_InvalidLimit(t *testing.T) {
	cur := NewCursor(0)
	if cur.Window().Limit < 1 {
		t.Errorf("Limit = %d, ожидался >= 1", cur.Window().Limit)
	}
}
