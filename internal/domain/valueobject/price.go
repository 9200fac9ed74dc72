package valueobject

import (
	"fmt"
	"math"

	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

// Price - стоимость работ в валюте площадки.
type Price float64

func NewPrice(amount float64) (Price, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, apperror.New(apperror.ErrCodeValidation, "цена должна быть числом")
	}
	if amount <= 0 {
		return 0, apperror.New(apperror.ErrCodeValidation, "цена должна быть положительной")
	}
	return Price(amount), nil
}

// Exceeds сообщает, что цена строго больше other.
func (p Price) Exceeds(other Price) bool {
	return p > other
}

func (p Price) String() string {
	return fmt.Sprintf("%.2f", float64(p))
}
