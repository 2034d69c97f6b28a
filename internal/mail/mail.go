package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender entrega un email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPMailer envía por una API JSON de email transaccional (formato Resend: POST /emails).
type HTTPMailer struct {
	client *resty.Client
	from   string
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func NewHTTPMailer(baseURL, apiKey, from string) (*HTTPMailer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("mail: api key is required")
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)
	return &HTTPMailer{client: client, from: from}, nil
}

func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail: recipient is required")
	}
	var apiErr apiError
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(sendRequest{
			From:    m.from,
			To:      []string{msg.To},
			Subject: msg.Subject,
			HTML:    msg.HTML,
			Text:    msg.Text,
		}).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("mail: request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail: provider returned %d: %s %s", resp.StatusCode(), apiErr.Name, apiErr.Message)
	}
	return nil
}

// LogMailer solo registra el email; se usa cuando no hay API key configurada.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.With(zap.String("component", "mail.log"))}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email (not sent, log mailer)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
