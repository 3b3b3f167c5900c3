package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/app"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

const testChannelID = "5e0aaf9f-8f3a-4c1b-9d2e-7a6b5c4d3e2f"

type stubChannelService struct {
	channel  domain.Channel
	channels []domain.Channel
	err      error
}

func (s *stubChannelService) CreateChannel(context.Context, app.CreateChannelInput) (domain.Channel, error) {
	return s.channel, s.err
}

func (s *stubChannelService) GetChannel(context.Context, string) (domain.Channel, error) {
	return s.channel, s.err
}

func (s *stubChannelService) ListChannels(context.Context, domain.ChannelStatus) ([]domain.Channel, error) {
	return s.channels, s.err
}

func (s *stubChannelService) VerifyChannel(context.Context, string) (domain.Channel, error) {
	return s.channel, s.err
}

type stubEarnings struct {
	total int64
	err   error
}

func (s *stubEarnings) TotalForChannel(context.Context, string) (int64, error) {
	return s.total, s.err
}

func TestHandleCreateChannel(t *testing.T) {
	t.Parallel()

	listed := domain.Channel{
		ID:         testChannelID,
		OwnerID:    "9001",
		TelegramID: -1001234,
		Title:      "Tech Daily",
		Pricing:    map[string]int64{"post": 100},
		Status:     domain.ChannelStatusPending,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			body:           `{"owner_id":"9001","telegram_id":-1001234,"title":"Tech Daily","pricing":{"post":100}}`,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"status":"pending"`,
		},
		{
			name:           "invalid json",
			body:           `{"owner_id":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing owner",
			body:           `{"title":"Tech Daily","pricing":{"post":100}}`,
			serviceErr:     domain.ErrOwnerRequired,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad pricing",
			body:           `{"owner_id":"9001","title":"Tech Daily","pricing":{"post":-5}}`,
			serviceErr:     domain.ErrInvalidPricing,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "duplicate",
			body:           `{"owner_id":"9001","telegram_id":-1001234,"title":"Tech Daily","pricing":{"post":100}}`,
			serviceErr:     domain.ErrChannelExists,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "internal error",
			body:           `{"owner_id":"9001","telegram_id":-1001234,"title":"Tech Daily","pricing":{"post":100}}`,
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubChannelService{channel: listed, err: tt.serviceErr}
			handler := HandleCreateChannel(svc)

			req := httptest.NewRequest(http.MethodPost, "/channels", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleVerifyChannel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			expectedStatus: http.StatusOK,
			expectedSubstr: `"verified":true`,
		},
		{
			name:           "ownership check failed",
			serviceErr:     domain.ErrChannelNotVerified,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "not found",
			serviceErr:     domain.ErrChannelNotFound,
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubChannelService{
				channel: domain.Channel{ID: testChannelID, Verified: true, Status: domain.ChannelStatusActive},
				err:     tt.serviceErr,
			}
			handler := routed(http.MethodPost, "/channels/{id}/verify", HandleVerifyChannel(svc))

			req := httptest.NewRequest(http.MethodPost, "/channels/"+testChannelID+"/verify", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleChannelEarnings(t *testing.T) {
	t.Parallel()

	handler := routed(http.MethodGet, "/channels/{id}/earnings", HandleChannelEarnings(&stubEarnings{total: 250}))

	req := httptest.NewRequest(http.MethodGet, "/channels/"+testChannelID+"/earnings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":250`) {
		t.Fatalf("expected total in response, got %q", rec.Body.String())
	}
}

func TestHandleListChannels_PassesStatusFilter(t *testing.T) {
	t.Parallel()

	svc := &stubChannelService{channels: []domain.Channel{
		{ID: testChannelID, Title: "Tech Daily", Status: domain.ChannelStatusActive},
	}}
	handler := HandleListChannels(svc)

	req := httptest.NewRequest(http.MethodGet, "/channels?status=active", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"Tech Daily"`) {
		t.Fatalf("expected channel in response, got %q", rec.Body.String())
	}
}
