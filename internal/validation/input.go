package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinRequestDescriptionLength = 5
	MaxRequestDescriptionLength = 2000
	MinOfferMessageLength       = 1
	MaxOfferMessageLength       = 1000
	MinMessageLength            = 1
	MaxMessageLength            = 5000
	MaxReviewCommentLength      = 1000
	MinRating                   = 1
	MaxRating                   = 5
	MaxPrice                    = 100000000.0 // 100 миллионов
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateRequestDescription проверяет описание проблемы в заявке.
func ValidateRequestDescription(description string) error {
	description = strings.TrimSpace(description)
	if err := ValidateNonEmpty("описание заявки", description); err != nil {
		return err
	}
	return ValidateLength("описание заявки", description, MinRequestDescriptionLength, MaxRequestDescriptionLength)
}

// ValidateOfferMessage проверяет обоснование встречного предложения.
func ValidateOfferMessage(message string) error {
	message = strings.TrimSpace(message)
	if err := ValidateNonEmpty("причина", message); err != nil {
		return err
	}
	return ValidateLength("причина", message, MinOfferMessageLength, MaxOfferMessageLength)
}

// ValidatePriceCeiling отсекает заведомо ошибочные суммы.
func ValidatePriceCeiling(amount float64) error {
	if amount > MaxPrice {
		return fmt.Errorf("цена не может превышать %.0f", MaxPrice)
	}
	return nil
}

// ValidateMessageContent проверяет содержимое сообщения чата.
func ValidateMessageContent(content string) error {
	content = strings.TrimSpace(content)
	if err := ValidateNonEmpty("сообщение", content); err != nil {
		return err
	}
	return ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength)
}

// ValidateRating проверяет оценку работы техника.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("оценка должна быть от %d до %d", MinRating, MaxRating)
	}
	return nil
}

// ValidateReviewComment проверяет необязательный комментарий к отзыву.
func ValidateReviewComment(comment *string) error {
	if comment == nil {
		return nil
	}
	return ValidateLength("комментарий", strings.TrimSpace(*comment), 0, MaxReviewCommentLength)
}
