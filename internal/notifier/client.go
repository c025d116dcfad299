// Пакет notifier — HTTP-клиент сервиса уведомлений.
// Отправляет события жизненного цикла deliverable (классификация,
// согласование, запрос доработки) внешнему сервису.
// Операция: Send (POST /api/v1/events).
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Типы событий доставки.
const (
	EventDeliverableReady  = "deliverable.ready"
	EventAssetApproved     = "deliverable.approved"
	EventRevisionRequested = "deliverable.revision_requested"
)

// Event — событие, отправляемое сервису уведомлений.
type Event struct {
	// Type — тип события (deliverable.ready, ...)
	Type string `json:"type"`
	// AssetID, ProjectID — идентификаторы ассета и проекта
	AssetID   string `json:"asset_id"`
	ProjectID string `json:"project_id"`
	// Actor — кто инициировал событие
	Actor string `json:"actor,omitempty"`
	// Comment — комментарий (для revision_requested)
	Comment string `json:"comment,omitempty"`
	// OccurredAt — момент события
	OccurredAt time.Time `json:"occurred_at"`
}

// Client — HTTP-клиент сервиса уведомлений.
// Пустой baseURL отключает отправку: Send становится no-op.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент уведомлений.
// baseURL — адрес сервиса (пустая строка — уведомления отключены).
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Enabled сообщает, настроена ли отправка уведомлений.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Send отправляет событие сервису уведомлений.
// При отключённом клиенте — no-op без ошибки.
func (c *Client) Send(ctx context.Context, ev Event) error {
	if !c.Enabled() {
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	url := c.baseURL + "/api/v1/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки события: %w", err)
	}
	defer resp.Body.Close()
	// Дочитываем тело для переиспользования соединения
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("сервис уведомлений вернул статус %d", resp.StatusCode)
	}

	c.logger.Debug("Событие отправлено",
		slog.String("type", ev.Type),
		slog.String("asset_id", ev.AssetID),
	)
	return nil
}
