package entity

import (
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
)

// Role - роль пользователя площадки.
type Role string

const (
	RoleClient     Role = "client"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// User - учётная запись на стороне REST API. ExternalID - subject
// внешнего провайдера идентификации.
type User struct {
	ID         int64                     `json:"id"`
	ExternalID string                    `json:"external_id"`
	Email      string                    `json:"email"`
	Name       string                    `json:"name"`
	Role       Role                      `json:"role"`
	Status     valueobject.AccountStatus `json:"status"`
}

func (u *User) IsEnabled() bool {
	return u.Status == valueobject.AccountEnabled
}

type TechnicianProfile struct {
	ID        int64                     `json:"id"`
	UserID    int64                     `json:"user_id"`
	Specialty string                    `json:"specialty"`
	Status    valueobject.AccountStatus `json:"status"`
}
