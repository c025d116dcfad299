// cursor.go — курсор пагинации "load more".
// Смена фильтра или сортировки сбрасывает накопленные страницы;
// "load more" добавляет следующую страницу к уже накопленным.
package facet

import "github.com/bigkaa/gomediastore/internal/domain/model"

// Cursor — курсор пагинации с накоплением страниц.
// Не потокобезопасен: один курсор — одна клиентская сессия просмотра.
type Cursor struct {
	limit   int
	offset  int
	hasMore bool
	items   []*model.Asset
}

// NewCursor создаёт курсор с указанным размером страницы.
// Неположительный limit заменяется на 1.
func NewCursor(limit int) *Cursor {
	if limit <= 0 {
		limit = 1
	}
	return &Cursor{limit: limit}
}

// Window возвращает окно следующей выборки (limit, offset).
func (c *Cursor) Window() Page {
	return Page{Limit: c.limit, Offset: c.offset}
}

// Reset сбрасывает курсор при смене фильтра или сортировки:
// offset → 0, накопленные страницы очищаются.
func (c *Cursor) Reset() {
	c.offset = 0
	c.hasMore = false
	c.items = nil
}

// Absorb принимает страницу результата. При offset == 0 результат
// заменяет накопленное, иначе — дополняет ("load more").
// HasMore выводится из общего количества после фильтрации, а не из
// размера страницы: страница ровно в limit без продолжения даёт false.
func (c *Cursor) Absorb(result Result) {
	if c.offset == 0 {
		c.items = append([]*model.Asset(nil), result.Page...)
	} else {
		c.items = append(c.items, result.Page...)
	}
	c.hasMore = len(c.items) < result.Counts.Filtered
}

// LoadMore сдвигает окно на следующую страницу.
// Возвращает false, если результатов больше нет.
func (c *Cursor) LoadMore() bool {
	if !c.hasMore {
		return false
	}
	c.offset += c.limit
	return true
}

// Items возвращает накопленные страницы.
func (c *Cursor) Items() []*model.Asset {
	return c.items
}

// HasMore сообщает, есть ли ещё результаты за пределами накопленного.
func (c *Cursor) HasMore() bool {
	return c.hasMore
}
