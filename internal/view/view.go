// Package view строит производные представления списка заявок: корзины
// по стадиям, поиск, сортировку и постраничный вывод. Все функции чистые
// и не изменяют входной срез.
package view

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

type Bucket string

const (
	BucketNew        Bucket = "new"
	BucketOffers     Bucket = "offers"
	BucketInProgress Bucket = "in_progress"
	BucketClosed     Bucket = "closed"
)

// Buckets перечисляет корзины в порядке вывода.
var Buckets = []Bucket{BucketNew, BucketOffers, BucketInProgress, BucketClosed}

type SortKey string

const (
	SortNone      SortKey = ""
	SortDateAsc   SortKey = "date_asc"
	SortDateDesc  SortKey = "date_desc"
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortAZ        SortKey = "az"
	SortZA        SortKey = "za"
)

// ParseSortKey проверяет ключ сортировки из строки запроса.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortNone, SortDateAsc, SortDateDesc, SortPriceAsc, SortPriceDesc, SortAZ, SortZA:
		return k, nil
	}
	return SortNone, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("неизвестный ключ сортировки %q", s))
}

// Viewer - тот, для кого строится представление.
type Viewer struct {
	Role    entity.Role
	ActorID int64
}

// negotiationStatuses - статусы, при которых заявка с ответами техников
// ещё находится в стадии предложений.
var negotiationStatuses = map[valueobject.RequestStatus]struct{}{
	valueobject.RequestPending:          {},
	valueobject.RequestRejectedByTech:   {},
	valueobject.RequestCounterByTech:    {},
	valueobject.RequestAcceptedByTech:   {},
	valueobject.RequestRejectedByClient: {},
}

// Classify определяет корзину заявки. Порядок проверок: закрытые,
// предложения, новые, в работе; поэтому корзины не пересекаются.
// Удалённые заявки и статусы вне классификации не попадают никуда.
func Classify(r *entity.ServiceRequest, v Viewer) (Bucket, bool) {
	if r.Status == valueobject.RequestDeleted {
		return "", false
	}
	if valueobject.IsClosed(r.Status) {
		return BucketClosed, true
	}
	if hasOffers(r, v) {
		if _, ok := negotiationStatuses[r.Status]; ok {
			return BucketOffers, true
		}
	}
	if valueobject.IsNew(r.Status) {
		return BucketNew, true
	}
	if valueobject.IsInProgress(r.Status) {
		return BucketInProgress, true
	}
	return "", false
}

func hasOffers(r *entity.ServiceRequest, v Viewer) bool {
	if v.Role == entity.RoleTechnician {
		return r.IsOfferStage(v.ActorID)
	}
	return r.HasTechnicianResponses()
}

// Partition раскладывает заявки по корзинам, сохраняя исходный порядок.
func Partition(requests []entity.ServiceRequest, v Viewer) map[Bucket][]entity.ServiceRequest {
	out := make(map[Bucket][]entity.ServiceRequest, len(Buckets))
	for _, b := range Buckets {
		out[b] = []entity.ServiceRequest{}
	}
	for i := range requests {
		if b, ok := Classify(&requests[i], v); ok {
			out[b] = append(out[b], requests[i])
		}
	}
	return out
}

// Search оставляет заявки, в описании которых есть term без учёта регистра.
// Пустой term ничего не отфильтровывает.
func Search(requests []entity.ServiceRequest, term string) []entity.ServiceRequest {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]entity.ServiceRequest, 0, len(requests))
	for _, r := range requests {
		if term == "" || strings.Contains(strings.ToLower(r.Description), term) {
			out = append(out, r)
		}
	}
	return out
}

// FilterStatus оставляет заявки с указанным статусом.
func FilterStatus(requests []entity.ServiceRequest, status valueobject.RequestStatus) []entity.ServiceRequest {
	out := make([]entity.ServiceRequest, 0, len(requests))
	for _, r := range requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Sort возвращает отсортированную копию. Сортировка устойчивая: при равных
// ключах сохраняется исходный порядок.
func Sort(requests []entity.ServiceRequest, key SortKey) []entity.ServiceRequest {
	out := append([]entity.ServiceRequest(nil), requests...)

	var less func(a, b *entity.ServiceRequest) bool
	switch key {
	case SortDateAsc:
		less = func(a, b *entity.ServiceRequest) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortDateDesc:
		less = func(a, b *entity.ServiceRequest) bool { return a.CreatedAt.After(b.CreatedAt) }
	case SortPriceAsc:
		less = func(a, b *entity.ServiceRequest) bool { return a.OfferedPrice < b.OfferedPrice }
	case SortPriceDesc:
		less = func(a, b *entity.ServiceRequest) bool { return a.OfferedPrice > b.OfferedPrice }
	case SortAZ:
		less = func(a, b *entity.ServiceRequest) bool {
			return strings.ToLower(a.Description) < strings.ToLower(b.Description)
		}
	case SortZA:
		less = func(a, b *entity.ServiceRequest) bool {
			return strings.ToLower(a.Description) > strings.ToLower(b.Description)
		}
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}
