package metastore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/metasync/internal/hms"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *HTTPClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	return srv, NewHTTPClient(cfg, nil)
}

func TestHTTPClientConnectVerifiesEndpoint(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/notifications/current", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]int64{"id": 42})
	})

	require.NoError(t, c.Connect(context.Background()))

	id, err := c.CurrentNotificationID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestHTTPClientConnectFailureLeavesClientDisconnected(t *testing.T) {
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv.Close()

	require.Error(t, c.Connect(context.Background()))

	_, err := c.CurrentNotificationID(context.Background())
	assert.Error(t, err)
}

func TestHTTPClientRequiresConnect(t *testing.T) {
	cfg := DefaultConfig()
	c := NewHTTPClient(cfg, nil)

	_, err := c.CurrentNotificationID(context.Background())
	assert.Error(t, err)
}

func TestHTTPClientFetchNotifications(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/notifications/current":
			json.NewEncoder(w).Encode(map[string]int64{"id": 12})
		case "/api/v1/notifications":
			assert.Equal(t, "10", r.URL.Query().Get("after"))
			assert.Equal(t, "5", r.URL.Query().Get("max"))
			json.NewEncoder(w).Encode(map[string][]hms.Event{
				"events": {
					{ID: 11, Type: hms.EventCreateTable, Database: "sales", Table: "orders"},
					{ID: 12, Type: hms.EventDropTable, Database: "sales", Table: "legacy"},
				},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	require.NoError(t, c.Connect(context.Background()))

	evs, err := c.FetchNotifications(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, int64(11), evs[0].ID)
	assert.Equal(t, hms.EventDropTable, evs[1].Type)
}

func TestHTTPClientFetchDefaultsBatchSize(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/notifications/current":
			json.NewEncoder(w).Encode(map[string]int64{"id": 0})
		case "/api/v1/notifications":
			assert.Equal(t, "1000", r.URL.Query().Get("max"))
			json.NewEncoder(w).Encode(map[string][]hms.Event{"events": {}})
		}
	})

	require.NoError(t, c.Connect(context.Background()))

	_, err := c.FetchNotifications(context.Background(), 0, 0)
	require.NoError(t, err)
}

func TestHTTPClientGoneMapsToOutOfSync(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/notifications/current":
			json.NewEncoder(w).Encode(map[string]int64{"id": 5})
		default:
			w.WriteHeader(http.StatusGone)
		}
	})

	require.NoError(t, c.Connect(context.Background()))

	_, err := c.FetchNotifications(context.Background(), 10, 0)
	assert.ErrorIs(t, err, ErrOutOfSync)
}

func TestHTTPClientFullSnapshot(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/notifications/current":
			json.NewEncoder(w).Encode(map[string]int64{"id": 100})
		case "/api/v1/snapshot":
			json.NewEncoder(w).Encode(Snapshot{
				ID:    100,
				Paths: map[string][]string{"/warehouse/sales": {"sales"}},
			})
		}
	})

	require.NoError(t, c.Connect(context.Background()))

	snap, err := c.FullSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), snap.ID)
	assert.Equal(t, []string{"sales"}, snap.Paths["/warehouse/sales"])
}

func TestHTTPClientFullSnapshotNilPathsNormalized(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/notifications/current":
			json.NewEncoder(w).Encode(map[string]int64{"id": 100})
		case "/api/v1/snapshot":
			json.NewEncoder(w).Encode(map[string]any{"id": 100})
		}
	})

	require.NoError(t, c.Connect(context.Background()))

	snap, err := c.FullSnapshot(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap.Paths)
	assert.Empty(t, snap.Paths)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.BaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FetchBatchSize = 0
	assert.Error(t, cfg.Validate())
}
