package negotiation_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

// calls - общий журнал обращений к «серверу» в порядке их выполнения.
type calls struct {
	mu   sync.Mutex
	list []string
}

func (c *calls) add(name string) {
	c.mu.Lock()
	c.list = append(c.list, name)
	c.mu.Unlock()
}

func (c *calls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.list...)
}

type mockRequestRepository struct {
	calls     *calls
	requests  map[int64]*entity.ServiceRequest
	nextID    int64
	statusErr error
	listErr   error

	// block, если задан, задерживает UpdateStatus до закрытия канала.
	block chan struct{}
	// hang - UpdateStatus висит, пока не истечёт контекст сценария.
	hang     bool
	statuses []valueobject.RequestStatus
}

func newMockRequestRepository(c *calls) *mockRequestRepository {
	return &mockRequestRepository{calls: c, requests: make(map[int64]*entity.ServiceRequest), nextID: 100}
}

func (m *mockRequestRepository) put(r entity.ServiceRequest) {
	m.requests[r.ID] = &r
}

func (m *mockRequestRepository) List(ctx context.Context, scope repository.RequestScope) ([]entity.ServiceRequest, error) {
	m.calls.add("requests.list")
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []entity.ServiceRequest
	for _, r := range m.requests {
		if scope.Role == entity.RoleClient && r.ClientID != scope.ActorID {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRequestRepository) FindByID(ctx context.Context, id int64) (*entity.ServiceRequest, error) {
	m.calls.add("requests.find")
	r, ok := m.requests[id]
	if !ok {
		return nil, apperror.ErrRequestNotFound
	}
	c := r.Clone()
	return &c, nil
}

func (m *mockRequestRepository) Create(ctx context.Context, draft *entity.RequestDraft) (*entity.ServiceRequest, error) {
	m.calls.add("requests.create")
	m.nextID++
	r := entity.ServiceRequest{
		ID:           m.nextID,
		ClientID:     draft.ClientID,
		Description:  draft.Description,
		OfferedPrice: draft.OfferedPrice,
		Status:       valueobject.RequestPending,
		CreatedAt:    time.Now(),
	}
	m.requests[r.ID] = &r
	c := r.Clone()
	return &c, nil
}

func (m *mockRequestRepository) UpdateStatus(ctx context.Context, id int64, status valueobject.RequestStatus) (*entity.ServiceRequest, error) {
	if m.block != nil {
		<-m.block
	}
	if m.hang {
		<-ctx.Done()
		m.calls.add("requests.status:" + status.String())
		return nil, ctx.Err()
	}
	m.calls.add("requests.status:" + status.String())
	m.statuses = append(m.statuses, status)
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	r, ok := m.requests[id]
	if !ok {
		return nil, apperror.ErrRequestNotFound
	}
	r.Status = status
	c := r.Clone()
	c.Offers = nil
	return &c, nil
}

type mockOfferRepository struct {
	calls     *calls
	offers    map[int64]*entity.ServiceOffer
	nextID    int64
	drafts    []entity.OfferDraft
	keys      []string
	createAs  *valueobject.OfferStatus
	statusErr error
	deleteErr error
	deleted   []int64
}

func newMockOfferRepository(c *calls) *mockOfferRepository {
	return &mockOfferRepository{calls: c, offers: make(map[int64]*entity.ServiceOffer), nextID: 500}
}

func (m *mockOfferRepository) Create(ctx context.Context, draft *entity.OfferDraft, key string) (*entity.ServiceOffer, error) {
	m.calls.add("offers.create")
	m.drafts = append(m.drafts, *draft)
	m.keys = append(m.keys, key)
	m.nextID++
	status := draft.Status
	if m.createAs != nil {
		status = *m.createAs
	}
	o := &entity.ServiceOffer{
		ID:            m.nextID,
		RequestID:     draft.RequestID,
		TechnicianID:  draft.TechnicianID,
		ProposedPrice: draft.ProposedPrice,
		Message:       draft.Message,
		Status:        status,
		CreatedAt:     time.Now(),
	}
	m.offers[o.ID] = o
	c := *o
	return &c, nil
}

func (m *mockOfferRepository) UpdateStatus(ctx context.Context, id int64, status valueobject.OfferStatus) (*entity.ServiceOffer, error) {
	m.calls.add("offers.status:" + status.String())
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	o, ok := m.offers[id]
	if !ok {
		return nil, apperror.ErrOfferNotFound
	}
	o.Status = status
	c := *o
	return &c, nil
}

func (m *mockOfferRepository) Delete(ctx context.Context, id int64) error {
	m.calls.add("offers.delete")
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	delete(m.offers, id)
	return nil
}

type mockNotificationRepository struct {
	mu   sync.Mutex
	sent []entity.Notification
	err  error
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *entity.Notification) (*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, *n)
	return n, nil
}

func (m *mockNotificationRepository) FindByID(ctx context.Context, id int64) (*entity.Notification, error) {
	return nil, apperror.New(apperror.ErrCodeNotFound, "нет")
}

type mockReviewRepository struct {
	calls   *calls
	reviews []entity.Review
}

func (m *mockReviewRepository) Create(ctx context.Context, r *entity.Review) (*entity.Review, error) {
	m.calls.add("reviews.create")
	m.reviews = append(m.reviews, *r)
	return r, nil
}

type mockJournal struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*entity.Compensation
	done     []uuid.UUID
	failures int
}

func newMockJournal() *mockJournal {
	return &mockJournal{items: make(map[uuid.UUID]*entity.Compensation)}
}

func (m *mockJournal) Record(ctx context.Context, c *entity.Compensation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.items[c.ID] = &cp
	return nil
}

func (m *mockJournal) ListDue(ctx context.Context, now time.Time, limit int) ([]entity.Compensation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Compensation
	for _, c := range m.items {
		if !c.NextAttemptAt.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockJournal) MarkDone(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	m.done = append(m.done, id)
	return nil
}

func (m *mockJournal) MarkFailed(ctx context.Context, id uuid.UUID, reason string, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
	if c, ok := m.items[id]; ok {
		c.Attempts++
		c.LastError = reason
		c.NextAttemptAt = next
	}
	return nil
}

func (m *mockJournal) pending() []entity.Compensation {
	list, _ := m.ListDue(context.Background(), time.Now().Add(100*time.Hour), 0)
	return list
}
