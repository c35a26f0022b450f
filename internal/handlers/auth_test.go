package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colink/colink/internal/middleware"
	"github.com/colink/colink/internal/users"
)

// memStore stands in for the redis-backed store in tests.
type memStore struct {
	mu    sync.Mutex
	users map[string]users.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]users.User)}
}

func (s *memStore) Create(_ context.Context, username, passwordHash string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return users.User{}, users.ErrExists
	}
	u := users.User{ID: uuid.New().String(), Username: username, PasswordHash: passwordHash}
	s.users[username] = u
	return u, nil
}

func (s *memStore) Get(_ context.Context, username string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeAuth(t *testing.T, resp *http.Response) AuthResponse {
	t.Helper()
	var out AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSignupAndLogin(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := postJSON(t, srv, "/api/auth/signup", CredentialsRequest{Username: "alice", Password: "hunter2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	signedUp := decodeAuth(t, resp)
	assert.NotEmpty(t, signedUp.Token)
	assert.NotEmpty(t, signedUp.User.ID)
	assert.Equal(t, "alice", signedUp.User.Username)

	claims, err := middleware.ParseToken("test-secret", signedUp.Token)
	require.NoError(t, err)
	assert.Equal(t, signedUp.User.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	resp = postJSON(t, srv, "/api/auth/login", CredentialsRequest{Username: "alice", Password: "hunter2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	loggedIn := decodeAuth(t, resp)
	assert.Equal(t, signedUp.User.ID, loggedIn.User.ID)
}

func TestSignupDuplicateUsername(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := postJSON(t, srv, "/api/auth/signup", CredentialsRequest{Username: "bob", Password: "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv, "/api/auth/signup", CredentialsRequest{Username: "bob", Password: "other"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginFailures(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := postJSON(t, srv, "/api/auth/login", CredentialsRequest{Username: "nobody", Password: "pw"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, srv, "/api/auth/signup", CredentialsRequest{Username: "carol", Password: "right"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv, "/api/auth/login", CredentialsRequest{Username: "carol", Password: "wrong"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv, "/api/auth/login", CredentialsRequest{Username: "carol"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateRoomRequiresToken(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	signup := postJSON(t, srv, "/api/auth/signup", CredentialsRequest{Username: "dave", Password: "pw"})
	token := decodeAuth(t, signup).Token

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var room CreateRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	_, err = uuid.Parse(room.RoomID)
	assert.NoError(t, err)
}
