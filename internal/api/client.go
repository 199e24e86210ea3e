package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/lehigh-university-libraries/circdesk/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout bounds every request when no timeout is configured
const DefaultTimeout = 30 * time.Second

// Client talks to the circulation backend
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

// NewClient creates a new circulation API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Error is a non-2xx answer from the backend
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// ListBooks fetches every book, including its loans
func (c *Client) ListBooks(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	if err := c.do(ctx, http.MethodGet, "/books", nil, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// ListMembers fetches every member
func (c *Client) ListMembers(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	if err := c.do(ctx, http.MethodGet, "/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// RegisterMember creates a member
func (c *Client) RegisterMember(ctx context.Context, name string) (*models.Member, error) {
	body := map[string]string{"name": name}
	var member models.Member
	if err := c.do(ctx, http.MethodPost, "/members", body, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// RegisterBook creates a book; the server assigns its QR payload
func (c *Client) RegisterBook(ctx context.Context, title, author string) (*models.RegisteredBook, error) {
	body := map[string]string{"title": title, "author": author}
	var raw jsoniter.RawMessage
	if err := c.do(ctx, http.MethodPost, "/books", body, &raw); err != nil {
		return nil, err
	}

	// Some deployments answer with {book, qrImage}, others with the bare book.
	var wrapped models.RegisteredBook
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Book.QRData != "" {
		return &wrapped, nil
	}
	var book models.Book
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("failed to decode registered book: %w", err)
	}
	return &models.RegisteredBook{Book: book}, nil
}

// Checkout lends the book identified by qrData to a member
func (c *Client) Checkout(ctx context.Context, qrData string, memberID int64) (*models.Confirmation, error) {
	body := struct {
		QRData   string `json:"qrData"`
		MemberID int64  `json:"memberId"`
	}{qrData, memberID}
	var conf models.Confirmation
	if err := c.do(ctx, http.MethodPost, "/checkout", body, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Return closes the open loan on the book identified by qrData
func (c *Client) Return(ctx context.Context, qrData string) (*models.Confirmation, error) {
	body := struct {
		QRData string `json:"qrData"`
	}{qrData}
	var conf models.Confirmation
	if err := c.do(ctx, http.MethodPost, "/return", body, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Track looks up the book identified by qrData and its open loan
func (c *Client) Track(ctx context.Context, qrData string) (*models.TrackResult, error) {
	body := struct {
		QRData string `json:"qrData"`
	}{qrData}
	var res models.TrackResult
	if err := c.do(ctx, http.MethodPost, "/track", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("Circulation API request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return err
	}
	defer resp.Body.Close()

	slog.Debug("Circulation API request", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID, "elapsed", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Detail: detailOf(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// detailOf extracts a human readable "detail" string, if the body has one
func detailOf(data []byte) string {
	var body struct {
		Detail jsoniter.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}
