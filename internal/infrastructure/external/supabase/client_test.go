package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-school-hub/student-registry/internal/domain/shared"
	"github.com/music-school-hub/student-registry/internal/domain/student"
	"github.com/music-school-hub/student-registry/pkg/circuitbreaker"
)

type recordedRequest struct {
	Method string
	Query  string
	Header http.Header
	Body   string
}

type fakePostgREST struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	response string
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	status, response := f.status, f.response
	f.mu.Unlock()

	if r.URL.Path != "/rest/v1/students" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

func (f *fakePostgREST) reply(status int, response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.response = status, response
}

func (f *fakePostgREST) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *fakePostgREST) {
	t.Helper()

	fake := &fakePostgREST{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL+"/", "anon-key")
	cfg.RequestsPerSecond = 0

	client, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return client, fake
}

const aliceRow = `{"id":"a1","name":"Alice","email":"alice@example.com","instrument":"Piano","skill_level":"Beginner","registered_at":"2024-01-02T10:00:00+00:00"}`

func TestNewClient_RequiresURLAndKey(t *testing.T) {
	_, err := NewClient(Config{AnonKey: "k"})
	assert.Error(t, err)
	_, err = NewClient(Config{URL: "http://x"})
	assert.Error(t, err)
}

func TestClient_List(t *testing.T) {
	client, fake := newTestClient(t)
	fake.reply(http.StatusOK, `[`+aliceRow+`]`)

	list, err := client.List(context.Background(), student.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].Name)
	assert.Equal(t, student.SkillBeginner, list[0].SkillLevel)
	assert.Equal(t, 2024, list[0].RegisteredAt.Year())

	req := fake.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "order=registered_at.desc&select=%2A", req.Query)
	assert.Equal(t, "anon-key", req.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get("Prefer"))
}

func TestClient_ListRejectsUnknownSkillLevel(t *testing.T) {
	client, fake := newTestClient(t)
	fake.reply(http.StatusOK, `[{"id":"x","name":"X","email":"x","instrument":"y","skill_level":"Expert","registered_at":"2024-01-02T10:00:00Z"}]`)

	_, err := client.List(context.Background(), student.DefaultListOptions())
	assert.ErrorIs(t, err, student.ErrInvalidSkillLevel)
}

func TestClient_Insert(t *testing.T) {
	client, fake := newTestClient(t)
	fake.reply(http.StatusCreated, `[`+aliceRow+`]`)

	s, err := client.Insert(context.Background(), student.Draft{
		Name: "Alice", Email: "alice@example.com", Instrument: "Piano", SkillLevel: student.SkillBeginner,
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", s.ID)

	req := fake.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "return=representation", req.Header.Get("Prefer"))

	var body []map[string]string
	require.NoError(t, json.Unmarshal([]byte(req.Body), &body))
	require.Len(t, body, 1)
	assert.Equal(t, map[string]string{
		"name": "Alice", "email": "alice@example.com", "instrument": "Piano", "skill_level": "Beginner",
	}, body[0])
}

func TestClient_UpdateSendsOnlyPresentFields(t *testing.T) {
	client, fake := newTestClient(t)
	fake.reply(http.StatusOK, `[`+aliceRow+`]`)

	_, err := client.Update(context.Background(), "a1", student.Patch{Instrument: student.StringPtr("Cello")})
	require.NoError(t, err)

	req := fake.last()
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "id=eq.a1&select=%2A", req.Query)
	assert.JSONEq(t, `{"instrument":"Cello"}`, req.Body)
}

func TestClient_UpdateAndDeleteNotFound(t *testing.T) {
	client, fake := newTestClient(t)
	fake.reply(http.StatusOK, `[]`)

	_, err := client.Update(context.Background(), "missing", student.Patch{Name: student.StringPtr("x")})
	assert.ErrorIs(t, err, student.ErrStudentNotFound)

	err = client.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, student.ErrStudentNotFound)
	assert.Equal(t, http.MethodDelete, fake.last().Method)
}

func TestClient_APIError(t *testing.T) {
	client, fake := newTestClient(t)
	fake.reply(http.StatusBadRequest, `{"code":"22P02","message":"invalid input syntax for type uuid","details":null,"hint":null}`)

	err := client.Delete(context.Background(), "not-a-uuid")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "22P02", apiErr.Code)
	assert.False(t, apiErr.IsServerError())
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	cb := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithIsFailure(isBreakerFailure))
	client, fake := newTestClient(t, WithBreaker(cb))
	ctx := context.Background()

	fake.reply(http.StatusBadRequest, `{"message":"bad"}`)
	for i := 0; i < 3; i++ {
		_, err := client.List(ctx, student.DefaultListOptions())
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())

	fake.reply(http.StatusServiceUnavailable, `{"message":"down"}`)
	for i := 0; i < 2; i++ {
		_, err := client.List(ctx, student.DefaultListOptions())
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	_, err := client.List(ctx, student.DefaultListOptions())
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.True(t, shared.IsExternalService(err))
}

func TestClient_Ping(t *testing.T) {
	client, fake := newTestClient(t)
	fake.reply(http.StatusOK, `[]`)

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "limit=1&select=id", fake.last().Query)
}

func TestClient_TimeoutIsReportedAsStoreTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL, "anon-key")
	cfg.RequestsPerSecond = 0
	client, err := NewClient(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.List(ctx, student.DefaultListOptions())
	assert.ErrorIs(t, err, shared.ErrStoreTimeout)
	assert.True(t, shared.IsExternalService(err))
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	want := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"timestamptz", `"2024-01-02T10:30:00+00:00"`, want},
		{"timestamptz with offset", `"2024-01-02T15:30:00+05:00"`, want},
		{"timestamp without zone", `"2024-01-02T10:30:00"`, want},
		{"timestamp with fraction", `"2024-01-02T10:30:00.000000"`, want},
		{"space separated", `"2024-01-02 10:30:00"`, want},
		{"date", `"2024-01-02"`, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %s", ts.Time)
		})
	}

	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestClient_ListAcceptsTimestampWithoutZone(t *testing.T) {
	client, fake := newTestClient(t)
	fake.reply(http.StatusOK, `[{"id":"1","name":"Alice","email":"a@x.com","instrument":"Piano","skill_level":"Beginner","registered_at":"2024-01-02T00:00:00"}]`)

	list, err := client.List(context.Background(), student.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), list[0].RegisteredAt)
}

func TestClient_RateLimitedBeyondDeadline(t *testing.T) {
	fake := &fakePostgREST{}
	fake.reply(http.StatusOK, `[]`)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL, "anon-key")
	cfg.RequestsPerSecond = 0.1
	cfg.Burst = 1
	client, err := NewClient(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = client.List(ctx, student.DefaultListOptions())
	require.NoError(t, err)

	_, err = client.List(ctx, student.DefaultListOptions())
	assert.ErrorIs(t, err, shared.ErrRateLimited)
}
