package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cookieName = "vm_session"

func TestSerializeRoundTrip(t *testing.T) {
	values := map[interface{}]interface{}{
		"auth_user_id": "user-1",
		"issued_at":    int64(1756720000),
	}

	data, err := serialize(values)
	require.NoError(t, err)

	decoded := make(map[interface{}]interface{})
	require.NoError(t, deserialize(data, &decoded))
	assert.Equal(t, values, decoded)
}

func TestGenerateID(t *testing.T) {
	first, err := generateID()
	require.NoError(t, err)
	second, err := generateID()
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
	assert.NotContains(t, first, "=")
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Hour, []byte("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.New(req, cookieName)
	require.NoError(t, err)
	assert.True(t, sess.IsNew)

	sess.Values["auth_user_id"] = "user-1"
	w := httptest.NewRecorder()
	require.NoError(t, store.Save(req, w, sess))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	// クッキーに生のセッションIDが載っていないこと
	assert.NotEqual(t, sess.ID, cookies[0].Value)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	loaded, err := store.New(next, cookieName)
	require.NoError(t, err)
	assert.False(t, loaded.IsNew)
	assert.Equal(t, "user-1", loaded.Values["auth_user_id"])
}

func TestMemoryStoreDestroy(t *testing.T) {
	store := NewMemoryStore(time.Hour, []byte("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.New(req, cookieName)
	require.NoError(t, err)
	sess.Values["auth_user_id"] = "user-1"
	w := httptest.NewRecorder()
	require.NoError(t, store.Save(req, w, sess))
	issued := w.Result().Cookies()[0]

	// 破棄
	destroyReq := httptest.NewRequest(http.MethodPost, "/logout", nil)
	destroyReq.AddCookie(issued)
	destroySess, err := store.New(destroyReq, cookieName)
	require.NoError(t, err)
	destroySess.Options.MaxAge = -1
	dw := httptest.NewRecorder()
	require.NoError(t, store.Save(destroyReq, dw, destroySess))

	// 古いクッキーを再送してもサーバー側にセッションは残っていない
	replay := httptest.NewRequest(http.MethodGet, "/", nil)
	replay.AddCookie(issued)
	replayed, err := store.New(replay, cookieName)
	require.NoError(t, err)
	assert.True(t, replayed.IsNew)
	assert.Empty(t, replayed.Values)
}

func TestMemoryStoreIgnoresTamperedCookie(t *testing.T) {
	store := NewMemoryStore(time.Hour, []byte("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "forged-value"})

	sess, err := store.New(req, cookieName)
	require.NoError(t, err)
	assert.True(t, sess.IsNew)
	assert.Empty(t, sess.ID)
}

func TestMemoryBackendExpiry(t *testing.T) {
	b := &memoryBackend{entries: make(map[string]memoryEntry)}
	ctx := context.Background()

	require.NoError(t, b.save(ctx, "sid", []byte("payload"), -time.Second))

	data, err := b.load(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestMemoryBackendDeleteAbsentID(t *testing.T) {
	b := &memoryBackend{entries: make(map[string]memoryEntry)}
	assert.NoError(t, b.delete(context.Background(), "missing"))
}
