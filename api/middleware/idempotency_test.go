package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryIdempotencyStore struct {
	records map[string]string
	ttls    map[string]time.Duration
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{records: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memoryIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := s.records[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *memoryIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.records[key]; ok {
		return false, nil
	}
	s.records[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func (s *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (s *memoryIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.records, key)
	}
	return nil
}

func checkoutRequestFor(member, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req.WithContext(WithMemberID(req.Context(), member))
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"payment_ref":"pay_` + strconv.Itoa(calls) + `"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, checkoutRequestFor("42", "key-1", `{"line_ids":["1"]}`))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, checkoutRequestFor("42", "key-1", `{"line_ids":["1"]}`))
	if second.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", second.Code)
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("replay body = %q, want stored %q", second.Body.String(), first.Body.String())
	}
	if ct := second.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("replay Content-Type = %q, want application/json", ct)
	}
}

func TestIdempotency_KeyReuseWithDifferentBodyRejected(t *testing.T) {
	store := newMemoryIdempotencyStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequestFor("42", "key-1", `{"line_ids":["1"]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequestFor("42", "key-1", `{"line_ids":["2"]}`))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for reused key with new body", rec.Code)
	}
}

func TestIdempotency_ScopedPerCaller(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequestFor("42", "key-1", `{"line_ids":["1"]}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequestFor("43", "key-1", `{"line_ids":["1"]}`))

	if calls != 2 {
		t.Errorf("handler ran %d times, want 2: same key from different members must not collide", calls)
	}
}

func TestIdempotency_MissingKeyRejected(t *testing.T) {
	store := newMemoryIdempotencyStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without an idempotency key")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequestFor("42", "", `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIdempotency_UnguardedRoutesPassThrough(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", bytes.NewBufferString(`{"item_id":5,"quantity":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(WithGuestToken(req.Context(), "tok-1")))
	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(WithGuestToken(req.Context(), "tok-1")))

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if calls != 2 {
		t.Errorf("handler ran %d times, want 2: cart add is not idempotency guarded", calls)
	}
}

func TestIdempotency_CheckoutKeepsLongTTL(t *testing.T) {
	store := newMemoryIdempotencyStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequestFor("42", "key-1", `{}`))

	for key, ttl := range store.ttls {
		if ttl != criticalIdempotencyTTL {
			t.Errorf("ttl for %s = %v, want %v", key, ttl, criticalIdempotencyTTL)
		}
	}
	if len(store.ttls) != 1 {
		t.Fatalf("stored %d records, want 1", len(store.ttls))
	}
}
