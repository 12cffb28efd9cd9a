package calendar

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`      // номер страницы (с 1)
	PageSize int  `json:"page_size"` // размер страницы после нормализации
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
	Total    int  `json:"total"`
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// NormalizePage приводит параметры страницы к допустимым значениям.
func NormalizePage(page, pageSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return page, pageSize
}

// Paginate возвращает срез items для указанной страницы и метаданные.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	page, pageSize = NormalizePage(page, pageSize)
	total := len(items)

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	return Page[T]{
		Items:    items[start:end],
		Page:     page,
		PageSize: pageSize,
		HasNext:  end < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}
