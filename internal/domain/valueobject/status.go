package valueobject

import (
	"encoding/json"
	"fmt"

	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

// Status - порядковый код статуса в протоколе REST API. Один и тот же набор
// значений используется для заявок, предложений, чатов и аккаунтов, поэтому
// внутри приложения он сразу переводится в типизированный статус сущности.
// Порядок значений не означает прогресс.
type Status uint8

const (
	StatusDisabled         Status = 0
	StatusEnabled          Status = 1
	StatusPending          Status = 2
	StatusRejectedByTech   Status = 3
	StatusCounterByTech    Status = 4
	StatusAcceptedByTech   Status = 5
	StatusRejectedByClient Status = 6
	StatusAcceptedByClient Status = 7
	StatusChatActive       Status = 8
	StatusFinalized        Status = 9
	StatusRated            Status = 10
	StatusDeleted          Status = 11
)

var statusNames = map[Status]string{
	StatusDisabled:         "DISABLED",
	StatusEnabled:          "ENABLED",
	StatusPending:          "PENDING",
	StatusRejectedByTech:   "REJECTED_BY_TECH",
	StatusCounterByTech:    "COUNTER_BY_TECH",
	StatusAcceptedByTech:   "ACCEPTED_BY_TECH",
	StatusRejectedByClient: "REJECTED_BY_CLIENT",
	StatusAcceptedByClient: "ACCEPTED_BY_CLIENT",
	StatusChatActive:       "CHAT_ACTIVE",
	StatusFinalized:        "FINALIZED",
	StatusRated:            "RATED",
	StatusDeleted:          "DELETED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", uint8(s))
}

// ParseStatusName возвращает код по имени статуса (например, "CHAT_ACTIVE").
func ParseStatusName(name string) (Status, error) {
	for code, n := range statusNames {
		if n == name {
			return code, nil
		}
	}
	return 0, apperror.New(apperror.ErrCodeValidation, "неизвестный статус "+name)
}

// wireEnum описывает таблицу соответствия между кодом протокола и статусом
// конкретной сущности.
type wireEnum[T ~uint8] struct {
	kind    string
	members map[Status]T
}

func newWireEnum[T ~uint8](kind string, codes ...Status) wireEnum[T] {
	members := make(map[Status]T, len(codes))
	for _, code := range codes {
		members[code] = T(code)
	}
	return wireEnum[T]{kind: kind, members: members}
}

func (e wireEnum[T]) fromWire(code Status) (T, error) {
	v, ok := e.members[code]
	if !ok {
		return 0, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("статус %s недопустим для сущности %q", code, e.kind))
	}
	return v, nil
}

func (e wireEnum[T]) unmarshal(data []byte) (T, error) {
	var code uint8
	if err := json.Unmarshal(data, &code); err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeValidation, "статус должен быть целым числом")
	}
	return e.fromWire(Status(code))
}

// RequestStatus - статус заявки клиента.
type RequestStatus uint8

const (
	RequestPending          = RequestStatus(StatusPending)
	RequestRejectedByTech   = RequestStatus(StatusRejectedByTech)
	RequestCounterByTech    = RequestStatus(StatusCounterByTech)
	RequestAcceptedByTech   = RequestStatus(StatusAcceptedByTech)
	RequestRejectedByClient = RequestStatus(StatusRejectedByClient)
	RequestAcceptedByClient = RequestStatus(StatusAcceptedByClient)
	RequestChatActive       = RequestStatus(StatusChatActive)
	RequestFinalized        = RequestStatus(StatusFinalized)
	RequestRated            = RequestStatus(StatusRated)
	RequestDeleted          = RequestStatus(StatusDeleted)
)

var requestStatuses = newWireEnum[RequestStatus]("request",
	StatusPending, StatusRejectedByTech, StatusCounterByTech, StatusAcceptedByTech,
	StatusRejectedByClient, StatusAcceptedByClient, StatusChatActive,
	StatusFinalized, StatusRated, StatusDeleted,
)

func RequestStatusFromWire(code Status) (RequestStatus, error) {
	return requestStatuses.fromWire(code)
}

func (s RequestStatus) Wire() Status   { return Status(s) }
func (s RequestStatus) String() string { return Status(s).String() }
func (s RequestStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint8(s))
}

func (s *RequestStatus) UnmarshalJSON(data []byte) error {
	v, err := requestStatuses.unmarshal(data)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// OfferStatus - статус предложения техника.
type OfferStatus uint8

const (
	OfferPending          = OfferStatus(StatusPending)
	OfferRejectedByTech   = OfferStatus(StatusRejectedByTech)
	OfferCounterByTech    = OfferStatus(StatusCounterByTech)
	OfferAcceptedByTech   = OfferStatus(StatusAcceptedByTech)
	OfferRejectedByClient = OfferStatus(StatusRejectedByClient)
	OfferAcceptedByClient = OfferStatus(StatusAcceptedByClient)
	OfferDeleted          = OfferStatus(StatusDeleted)
)

var offerStatuses = newWireEnum[OfferStatus]("offer",
	StatusPending, StatusRejectedByTech, StatusCounterByTech, StatusAcceptedByTech,
	StatusRejectedByClient, StatusAcceptedByClient, StatusDeleted,
)

func OfferStatusFromWire(code Status) (OfferStatus, error) {
	return offerStatuses.fromWire(code)
}

func (s OfferStatus) Wire() Status   { return Status(s) }
func (s OfferStatus) String() string { return Status(s).String() }
func (s OfferStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint8(s))
}

func (s *OfferStatus) UnmarshalJSON(data []byte) error {
	v, err := offerStatuses.unmarshal(data)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// IsTechnicianResponse сообщает, что предложение - ответ техника
// (принял, отклонил или предложил свою цену).
func (s OfferStatus) IsTechnicianResponse() bool {
	switch s {
	case OfferCounterByTech, OfferAcceptedByTech, OfferRejectedByTech:
		return true
	}
	return false
}

// RequestStatus возвращает статус заявки с тем же кодом.
func (s OfferStatus) RequestStatus() RequestStatus {
	return RequestStatus(s)
}

// ChatStatus - статус чата по заявке.
type ChatStatus uint8

const (
	ChatAcceptedByClient = ChatStatus(StatusAcceptedByClient)
	ChatActive           = ChatStatus(StatusChatActive)
	ChatFinalized        = ChatStatus(StatusFinalized)
	ChatRated            = ChatStatus(StatusRated)
	ChatDeleted          = ChatStatus(StatusDeleted)
)

var chatStatuses = newWireEnum[ChatStatus]("chat",
	StatusAcceptedByClient, StatusChatActive, StatusFinalized, StatusRated, StatusDeleted,
)

func ChatStatusFromWire(code Status) (ChatStatus, error) {
	return chatStatuses.fromWire(code)
}

func (s ChatStatus) Wire() Status   { return Status(s) }
func (s ChatStatus) String() string { return Status(s).String() }
func (s ChatStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint8(s))
}

func (s *ChatStatus) UnmarshalJSON(data []byte) error {
	v, err := chatStatuses.unmarshal(data)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// IsTerminal: в завершённый чат писать нельзя.
func (s ChatStatus) IsTerminal() bool {
	switch s {
	case ChatFinalized, ChatRated, ChatDeleted:
		return true
	}
	return false
}

// AccountStatus - статус учётной записи пользователя.
type AccountStatus uint8

const (
	AccountDisabled = AccountStatus(StatusDisabled)
	AccountEnabled  = AccountStatus(StatusEnabled)
	AccountDeleted  = AccountStatus(StatusDeleted)
)

var accountStatuses = newWireEnum[AccountStatus]("account",
	StatusDisabled, StatusEnabled, StatusDeleted,
)

func AccountStatusFromWire(code Status) (AccountStatus, error) {
	return accountStatuses.fromWire(code)
}

func (s AccountStatus) Wire() Status   { return Status(s) }
func (s AccountStatus) String() string { return Status(s).String() }
func (s AccountStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint8(s))
}

func (s *AccountStatus) UnmarshalJSON(data []byte) error {
	v, err := accountStatuses.unmarshal(data)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Классификация заявок идёт только по явным спискам статусов.
var (
	inProgressStatuses = map[RequestStatus]struct{}{
		RequestAcceptedByTech:   {},
		RequestCounterByTech:    {},
		RequestRejectedByTech:   {},
		RequestRejectedByClient: {},
		RequestAcceptedByClient: {},
		RequestChatActive:       {},
	}
	closedStatuses = map[RequestStatus]struct{}{
		RequestFinalized: {},
		RequestRated:     {},
	}
)

// IsNew - заявка ещё ждёт реакции техника.
func IsNew(s RequestStatus) bool {
	return s == RequestPending
}

// IsInProgress - заявка в процессе согласования или работы.
func IsInProgress(s RequestStatus) bool {
	_, ok := inProgressStatuses[s]
	return ok
}

// IsClosed - работа завершена (и, возможно, оценена).
func IsClosed(s RequestStatus) bool {
	_, ok := closedStatuses[s]
	return ok
}
