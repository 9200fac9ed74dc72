package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/techmarket-sync/internal/logger"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

const maxErrorBody = 4 << 10

// TokenSource выдаёт bearer-токен для очередного запроса.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken - постоянный токен (сервисная учётная запись, тесты).
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

type tokenKey struct{}

// WithToken кладёт в контекст токен пользователя, от имени которого
// выполняются запросы. Он важнее токена из TokenSource.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext возвращает токен, положенный WithToken.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey{}).(string); ok {
		return v
	}
	return ""
}

// Client - клиент REST API площадки. Реализует интерфейсы репозиториев
// из domain/repository.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do выполняет запрос. Ответ с кодом >= 400 превращается в AppError через
// apperror.FromHTTPStatus, транспортная ошибка - в UPSTREAM_ERROR.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, headers map[string]string) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать запрос")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сформировать запрос")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	token := TokenFromContext(ctx)
	if token == "" && c.tokens != nil {
		if token, err = c.tokens.Token(ctx); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeUnauthorized, "не удалось получить токен")
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Get().WithError(err).WithField("path", path).Warn("REST API unreachable")
		return apperror.Wrap(err, apperror.ErrCodeUpstream, "сервер недоступен")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr apiError
		msg := ""
		if json.Unmarshal(raw, &apiErr) == nil {
			msg = apiErr.Message
			if msg == "" {
				msg = apiErr.Error
			}
		}
		logger.Get().WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Debug("REST API returned error")
		return apperror.FromHTTPStatus(resp.StatusCode, msg)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeUpstream, fmt.Sprintf("некорректный ответ %s %s", method, path))
	}
	return nil
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
