package account

import (
	"context"
	"strings"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

type EnsureUserInput struct {
	ExternalID string
	Email      string
	Name       string
	Role       entity.Role
	Specialty  string
}

// EnsureAccountUseCase заводит пользователя (и профиль техника) при первом
// входе. Если запись уже есть, сервер отвечает 409, и тогда берётся
// существующая.
type EnsureAccountUseCase struct {
	userRepo repository.UserRepository
}

func NewEnsureAccountUseCase(userRepo repository.UserRepository) *EnsureAccountUseCase {
	return &EnsureAccountUseCase{userRepo: userRepo}
}

func (uc *EnsureAccountUseCase) Execute(ctx context.Context, input EnsureUserInput) (*entity.User, error) {
	user, err := uc.EnsureUser(ctx, input)
	if err != nil {
		return nil, err
	}
	if user.Role == entity.RoleTechnician {
		if _, err := uc.EnsureTechnicianProfile(ctx, user.ID, input.Specialty); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (uc *EnsureAccountUseCase) EnsureUser(ctx context.Context, input EnsureUserInput) (*entity.User, error) {
	input.ExternalID = strings.TrimSpace(input.ExternalID)
	if input.ExternalID == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указан идентификатор пользователя")
	}
	if !input.Role.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректная роль")
	}

	user, err := uc.userRepo.Create(ctx, &entity.User{
		ExternalID: input.ExternalID,
		Email:      input.Email,
		Name:       input.Name,
		Role:       input.Role,
		Status:     valueobject.AccountEnabled,
	})
	if err == nil {
		logger.ForActor(user.ID).Info("User registered")
		return user, nil
	}
	if !apperror.IsConflict(err) {
		return nil, err
	}

	existing, err := uc.userRepo.FindByExternalID(ctx, input.ExternalID)
	if err != nil {
		return nil, err
	}
	if existing.Status == valueobject.AccountDeleted {
		return nil, apperror.New(apperror.ErrCodeForbidden, "учётная запись удалена")
	}
	return existing, nil
}

func (uc *EnsureAccountUseCase) EnsureTechnicianProfile(ctx context.Context, userID int64, specialty string) (*entity.TechnicianProfile, error) {
	profile, err := uc.userRepo.CreateTechnicianProfile(ctx, &entity.TechnicianProfile{
		UserID:    userID,
		Specialty: strings.TrimSpace(specialty),
		Status:    valueobject.AccountEnabled,
	})
	if err == nil {
		return profile, nil
	}
	if !apperror.IsConflict(err) {
		return nil, err
	}
	return uc.userRepo.FindTechnicianProfileByUserID(ctx, userID)
}
