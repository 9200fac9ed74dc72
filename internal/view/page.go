package view

import (
	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
)

const DefaultPageSize = 10

// Page - одна страница корзины. Номер страницы начинается с 1.
type Page struct {
	Items      []entity.ServiceRequest `json:"items"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	Total      int                     `json:"total"`
	TotalPages int                     `json:"total_pages"`
}

// Paginate вырезает страницу page. Номер меньше 1 считается первой
// страницей, номер за пределами - даёт пустую страницу.
func Paginate(items []entity.ServiceRequest, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	total := len(items)
	pages := total / size
	if total%size != 0 {
		pages++
	}

	// Номер страницы приходит из запроса: умножать можно только в пределах pages.
	start := total
	if page <= pages {
		start = (page - 1) * size
	}
	end := total
	if size < total-start {
		end = start + size
	}

	return Page{
		Items:      append([]entity.ServiceRequest{}, items[start:end]...),
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
	}
}

// Query - параметры представления.
type Query struct {
	Search   string
	Sort     SortKey
	Status   *valueobject.RequestStatus
	Page     int
	PageSize int
}

// Result - все четыре корзины после фильтрации и пагинации.
type Result struct {
	New        Page `json:"new"`
	Offers     Page `json:"offers"`
	InProgress Page `json:"in_progress"`
	Closed     Page `json:"closed"`
}

// Build строит представление: поиск, разбиение по корзинам, фильтр статуса
// (только для корзины «в работе»), сортировку и пагинацию.
func Build(requests []entity.ServiceRequest, v Viewer, q Query) Result {
	buckets := Partition(Search(requests, q.Search), v)

	if q.Status != nil {
		buckets[BucketInProgress] = FilterStatus(buckets[BucketInProgress], *q.Status)
	}

	page := func(b Bucket) Page {
		return Paginate(Sort(buckets[b], q.Sort), q.Page, q.PageSize)
	}

	return Result{
		New:        page(BucketNew),
		Offers:     page(BucketOffers),
		InProgress: page(BucketInProgress),
		Closed:     page(BucketClosed),
	}
}
