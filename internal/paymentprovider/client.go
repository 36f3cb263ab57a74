// Package paymentprovider — клиент REST API платёжного шлюза Flutterwave v3:
// ссылки оплаты, проверка транзакций и платёжные планы.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// StatusSuccessful — статус успешной транзакции.
	StatusSuccessful = "successful"
	// EventChargeCompleted — событие вебхука о завершённом списании.
	EventChargeCompleted = "charge.completed"
	// MetaTypeSubscription — вид платежа за подписку.
	MetaTypeSubscription = "subscription"
)

// Client обращается к API шлюза.
type Client struct {
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт клиент. baseURL — корень API, например https://api.flutterwave.com/v3.
func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		secretKey:  secretKey,
		apiURL:     baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf io.Reader
	if body != nil {
		b := &bytes.Buffer{}
		if err := json.NewEncoder(b).Encode(body); err != nil {
			return nil, err
		}
		buf = b
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func do[T any](c *Client, req *http.Request) (T, error) {
	var out envelope[T]
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out.Data, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return out.Data, fmt.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out.Data, err
	}
	if out.Status != "success" {
		return out.Data, fmt.Errorf("provider error: %s", out.Message)
	}
	return out.Data, nil
}

// CreatePaymentLink создаёт страницу оплаты и возвращает ссылку на неё.
func (c *Client) CreatePaymentLink(ctx context.Context, params PaymentLinkRequest) (string, error) {
	const op = "paymentprovider.CreatePaymentLink"
	req, err := c.newRequest(ctx, http.MethodPost, "/payments", params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	data, err := do[linkData](c, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if data.Link == "" {
		return "", fmt.Errorf("%s: empty payment link", op)
	}
	return data.Link, nil
}

// VerifyTransaction запрашивает у шлюза фактическое состояние транзакции.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID int64) (*Transaction, error) {
	const op = "paymentprovider.VerifyTransaction"
	req, err := c.newRequest(ctx, http.MethodGet, "/transactions/"+strconv.FormatInt(transactionID, 10)+"/verify", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tx, err := do[Transaction](c, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &tx, nil
}

// CreatePaymentPlan регистрирует платёжный план для регулярных списаний.
func (c *Client) CreatePaymentPlan(ctx context.Context, name string, amount int64, interval string) (*PaymentPlan, error) {
	const op = "paymentprovider.CreatePaymentPlan"
	req, err := c.newRequest(ctx, http.MethodPost, "/payment-plans", map[string]any{
		"name":     name,
		"amount":   amount,
		"interval": interval,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan, err := do[PaymentPlan](c, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &plan, nil
}
