package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/api/middleware"
	"github.com/tillpoint/tillpoint-backend/internal/feed"
	"github.com/tillpoint/tillpoint-backend/internal/ingest"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	"github.com/tillpoint/tillpoint-backend/pkg/pagination"
)

type stubIngest struct {
	pushResult *ingest.PushResult
	pushInput  *ingest.PushInput
	err        error
}

func (s *stubIngest) Push(ctx context.Context, input ingest.PushInput) (*ingest.PushResult, error) {
	s.pushInput = &input
	return s.pushResult, s.err
}

func (s *stubIngest) Get(ctx context.Context, storeID, id uuid.UUID) (*models.Transaction, error) {
	return nil, s.err
}

func (s *stubIngest) List(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*ingest.TransactionPage, error) {
	return &ingest.TransactionPage{}, s.err
}

func (s *stubIngest) Void(ctx context.Context, storeID, cashierID, id uuid.UUID) (*models.Transaction, error) {
	return nil, s.err
}

func (s *stubIngest) CountByStatus(ctx context.Context, storeID uuid.UUID) (map[enums.TransactionStatus]int64, error) {
	return nil, s.err
}

type stubFeed struct {
	pullSince  *time.Time
	pullResult *feed.PullResult
	snapshot   *feed.Snapshot
	entities   []enums.SyncEntityType
	status     *feed.Status
	err        error
}

func (s *stubFeed) Record(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, entityType enums.SyncEntityType, entityID uuid.UUID, action enums.SyncAction) error {
	return nil
}

func (s *stubFeed) Pull(ctx context.Context, storeID uuid.UUID, since time.Time) (*feed.PullResult, error) {
	s.pullSince = &since
	return s.pullResult, s.err
}

func (s *stubFeed) FullSync(ctx context.Context, storeID uuid.UUID, entities []enums.SyncEntityType) (*feed.Snapshot, error) {
	s.entities = entities
	return s.snapshot, s.err
}

func (s *stubFeed) Status(ctx context.Context, storeID uuid.UUID) (*feed.Status, error) {
	return s.status, s.err
}

func terminalContext(req *http.Request, storeID, cashierID uuid.UUID) *http.Request {
	ctx := middleware.WithStoreID(req.Context(), storeID.String())
	ctx = middleware.WithCashierID(ctx, cashierID.String())
	return req.WithContext(ctx)
}

func TestSyncPushSuccess(t *testing.T) {
	storeID := uuid.New()
	cashierID := uuid.New()
	stub := &stubIngest{pushResult: &ingest.PushResult{
		Synced: []ingest.SyncedSale{{ClientID: "c-1", ServerID: uuid.New(), TransactionNumber: "INV-S01-000001"}},
	}}
	handler := SyncPush(stub, nil)

	payload := []byte(`{
		"sales": [{
			"client_id": "c-1",
			"items": [{"product_id": "` + uuid.NewString() + `", "quantity": 1, "unit_price": "5.00"}],
			"payment_method": "cash",
			"subtotal": "5.00",
			"total": "5.00",
			"client_timestamp": "2025-06-01T09:00:00Z"
		}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/push", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req = terminalContext(req, storeID, cashierID)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.pushInput == nil || stub.pushInput.StoreID != storeID || stub.pushInput.CashierID != cashierID {
		t.Fatalf("identity not forwarded: %+v", stub.pushInput)
	}
	var envelope struct {
		Data ingest.PushResult `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Synced) != 1 || envelope.Data.Synced[0].TransactionNumber != "INV-S01-000001" {
		t.Fatalf("unexpected body: %+v", envelope.Data)
	}
}

func TestSyncPushRejectsEmptyBatch(t *testing.T) {
	handler := SyncPush(&stubIngest{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/push", bytes.NewReader([]byte(`{"sales": []}`)))
	req.Header.Set("Content-Type", "application/json")
	req = terminalContext(req, uuid.New(), uuid.New())
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSyncPushMissingStoreContext(t *testing.T) {
	handler := SyncPush(&stubIngest{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/push", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestSyncPullRequiresSince(t *testing.T) {
	handler := SyncPull(&stubFeed{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/pull", nil)
	req = terminalContext(req, uuid.New(), uuid.New())
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSyncPullForwardsCursor(t *testing.T) {
	since := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	stub := &stubFeed{pullResult: &feed.PullResult{LastSyncTimestamp: since}}
	handler := SyncPull(stub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/pull?since=2025-06-01T09:00:00Z", nil)
	req = terminalContext(req, uuid.New(), uuid.New())
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.pullSince == nil || !stub.pullSince.Equal(since) {
		t.Fatalf("since not forwarded: %v", stub.pullSince)
	}
}

func TestSyncPullRejectsMalformedSince(t *testing.T) {
	handler := SyncPull(&stubFeed{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/pull?since=yesterday", nil)
	req = terminalContext(req, uuid.New(), uuid.New())
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSyncFullParsesEntityFilter(t *testing.T) {
	stub := &stubFeed{snapshot: &feed.Snapshot{}}
	handler := SyncFull(stub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/full?entities=product,stock", nil)
	req = terminalContext(req, uuid.New(), uuid.New())
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(stub.entities) != 2 || stub.entities[0] != enums.SyncEntityProduct || stub.entities[1] != enums.SyncEntityStock {
		t.Fatalf("unexpected entity filter: %v", stub.entities)
	}
}

func TestSyncFullRejectsUnknownEntity(t *testing.T) {
	handler := SyncFull(&stubFeed{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/full?entities=vouchers", nil)
	req = terminalContext(req, uuid.New(), uuid.New())
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSyncStatusSuccess(t *testing.T) {
	stub := &stubFeed{status: &feed.Status{GeneratedAt: time.Now().UTC()}}
	handler := SyncStatus(stub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	req = terminalContext(req, uuid.New(), uuid.New())
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}
