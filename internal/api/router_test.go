package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/caskfs/caskfs/internal/api/auth"
	"github.com/caskfs/caskfs/pkg/controlplane/models"
	"github.com/caskfs/caskfs/pkg/controlplane/store"
	contentmemory "github.com/caskfs/caskfs/pkg/content/memory"
	metamemory "github.com/caskfs/caskfs/pkg/metadata/store/memory"
	"github.com/caskfs/caskfs/pkg/notify"
	"github.com/caskfs/caskfs/pkg/vault"
)

const testMaxUploadSize = 1 << 20

// fakeUserStore is an in-memory UserStore for handler tests.
type fakeUserStore struct {
	users map[string]*models.User
}

var _ store.UserStore = (*fakeUserStore)(nil)

func newFakeUserStore(t *testing.T) *fakeUserStore {
	t.Helper()
	s := &fakeUserStore{users: make(map[string]*models.User)}
	for i, spec := range []struct {
		username string
		role     models.UserRole
	}{
		{"alice", models.RoleUser},
		{"bob", models.RoleUser},
		{"admin", models.RoleAdmin},
	} {
		hash, err := models.HashPassword("password-" + spec.username)
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		s.users[spec.username] = &models.User{
			ID:           fmt.Sprintf("user-%d", i+1),
			Username:     spec.username,
			PasswordHash: hash,
			Enabled:      true,
			Role:         string(spec.role),
			CreatedAt:    time.Now(),
		}
	}
	return s
}

func (s *fakeUserStore) GetUser(_ context.Context, username string) (*models.User, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *fakeUserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *fakeUserStore) ListUsers(_ context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *fakeUserStore) CreateUser(_ context.Context, user *models.User) (string, error) {
	if _, exists := s.users[user.Username]; exists {
		return "", models.ErrDuplicateUser
	}
	copied := *user
	s.users[user.Username] = &copied
	return user.ID, nil
}

func (s *fakeUserStore) UpdateUser(_ context.Context, user *models.User) error {
	existing, ok := s.users[user.Username]
	if !ok {
		return models.ErrUserNotFound
	}
	existing.Enabled = user.Enabled
	existing.Role = user.Role
	return nil
}

func (s *fakeUserStore) DeleteUser(_ context.Context, username string) error {
	if _, ok := s.users[username]; !ok {
		return models.ErrUserNotFound
	}
	delete(s.users, username)
	return nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, username, passwordHash string) error {
	user, ok := s.users[username]
	if !ok {
		return models.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (s *fakeUserStore) UpdateLastLogin(_ context.Context, username string, timestamp time.Time) error {
	user, ok := s.users[username]
	if !ok {
		return models.ErrUserNotFound
	}
	user.LastLogin = &timestamp
	return nil
}

func (s *fakeUserStore) ValidateCredentials(_ context.Context, username, password string) (*models.User, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, models.ErrInvalidCredentials
	}
	if !user.Enabled {
		return nil, models.ErrUserDisabled
	}
	if err := models.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	copied := *user
	return &copied, nil
}

func (s *fakeUserStore) EnsureAdminUser(context.Context) (string, error) {
	return "", nil
}

type apiFixture struct {
	handler     http.Handler
	jwtService  *auth.JWTService
	userStore   *fakeUserStore
	coordinator *vault.Coordinator
	broadcaster *notify.Broadcaster
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	broadcaster := notify.NewBroadcaster()
	t.Cleanup(broadcaster.Close)

	coordinator, err := vault.New(vault.Config{
		Metadata: metamemory.New(),
		Content:  contentmemory.New(),
		Notifier: broadcaster,
	})
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "test-secret-key-that-is-at-least-32-characters-long",
	})
	if err != nil {
		t.Fatalf("failed to create JWT service: %v", err)
	}

	userStore := newFakeUserStore(t)

	return &apiFixture{
		handler:     NewRouter(coordinator, broadcaster, jwtService, userStore, testMaxUploadSize),
		jwtService:  jwtService,
		userStore:   userStore,
		coordinator: coordinator,
		broadcaster: broadcaster,
	}
}

// tokenFor generates a valid access token for the named seeded user.
func (f *apiFixture) tokenFor(t *testing.T, username string) string {
	t.Helper()
	user, err := f.userStore.GetUser(context.Background(), username)
	if err != nil {
		t.Fatalf("unknown test user %q: %v", username, err)
	}
	pair, err := f.jwtService.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("failed to generate token pair: %v", err)
	}
	return pair.AccessToken
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want %d", rr.Code, http.StatusOK)
	}

	rr = f.do(t, http.MethodGet, "/health/ready", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health/ready = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestLoginFlow(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("valid credentials", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"username": "alice", "password": "password-alice"})
		rr := f.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("login = %d, body %s", rr.Code, rr.Body.String())
		}

		resp := decodeBody[map[string]any](t, rr)
		token, _ := resp["access_token"].(string)
		if token == "" {
			t.Fatal("expected access_token in response")
		}

		me := f.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
		if me.Code != http.StatusOK {
			t.Fatalf("GET /auth/me = %d", me.Code)
		}
		user := decodeBody[map[string]any](t, me)
		if user["username"] != "alice" {
			t.Errorf("me username = %v, want alice", user["username"])
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
		rr := f.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("login = %d, want %d", rr.Code, http.StatusUnauthorized)
		}
	})

	t.Run("refresh token rotation", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"username": "bob", "password": "password-bob"})
		rr := f.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("login = %d", rr.Code)
		}
		resp := decodeBody[map[string]any](t, rr)
		refreshToken, _ := resp["refresh_token"].(string)

		refreshBody, _ := json.Marshal(map[string]string{"refresh_token": refreshToken})
		refreshed := f.do(t, http.MethodPost, "/api/v1/auth/refresh", "", refreshBody)
		if refreshed.Code != http.StatusOK {
			t.Fatalf("refresh = %d, body %s", refreshed.Code, refreshed.Body.String())
		}
		newResp := decodeBody[map[string]any](t, refreshed)
		if newResp["access_token"] == "" {
			t.Error("expected new access token after refresh")
		}
	})
}

func TestFilesRequireAuthentication(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/api/v1/files", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated list = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	rr = f.do(t, http.MethodPost, "/api/v1/files/report.txt", "", []byte("data"))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated upload = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	f := newAPIFixture(t)
	token := f.tokenFor(t, "alice")

	rr := f.do(t, http.MethodPost, "/api/v1/files/report.txt", token, []byte("first draft"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body %s", rr.Code, rr.Body.String())
	}
	record := decodeBody[map[string]any](t, rr)
	if record["version"] != float64(1) {
		t.Errorf("first upload version = %v, want 1", record["version"])
	}
	if record["uploaded_by"] != "alice" {
		t.Errorf("uploaded_by = %v, want alice", record["uploaded_by"])
	}

	rr = f.do(t, http.MethodPost, "/api/v1/files/report.txt", token, []byte("second draft"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("second upload = %d", rr.Code)
	}
	record = decodeBody[map[string]any](t, rr)
	if record["version"] != float64(2) {
		t.Errorf("second upload version = %v, want 2", record["version"])
	}

	t.Run("download latest", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/files/report.txt/content", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("download = %d", rr.Code)
		}
		if got := rr.Body.String(); got != "second draft" {
			t.Errorf("downloaded %q, want %q", got, "second draft")
		}
		if v := rr.Header().Get("X-Caskfs-Version"); v != "2" {
			t.Errorf("version header = %q, want %q", v, "2")
		}
		if rr.Header().Get("X-Caskfs-Content-Hash") == "" {
			t.Error("expected content hash header")
		}
	})

	t.Run("download specific version", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/files/report.txt/content?version=1", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("download = %d", rr.Code)
		}
		if got := rr.Body.String(); got != "first draft" {
			t.Errorf("downloaded %q, want %q", got, "first draft")
		}
	})

	t.Run("unknown version", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/files/report.txt/content?version=9", token, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("download = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})

	t.Run("malformed version", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/files/report.txt/content?version=abc", token, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("download = %d, want %d", rr.Code, http.StatusBadRequest)
		}
	})

	t.Run("history", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/files/report.txt", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("get file = %d", rr.Code)
		}
		file := decodeBody[map[string]any](t, rr)
		versions, _ := file["versions"].([]any)
		if len(versions) != 2 {
			t.Errorf("history length = %d, want 2", len(versions))
		}
	})

	t.Run("listing", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/files", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("list = %d", rr.Code)
		}
		files := decodeBody[[]map[string]any](t, rr)
		if len(files) != 1 {
			t.Fatalf("listing length = %d, want 1", len(files))
		}
		if files[0]["name"] != "report.txt" || files[0]["current_version"] != float64(2) {
			t.Errorf("unexpected listing entry: %v", files[0])
		}
	})

	t.Run("verify", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/files/report.txt/verify", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("verify = %d", rr.Code)
		}
		result := decodeBody[map[string]any](t, rr)
		if result["valid"] != true {
			t.Errorf("verify valid = %v, want true", result["valid"])
		}
	})
}

func TestUploadOverSizeLimitRejected(t *testing.T) {
	f := newAPIFixture(t)
	token := f.tokenFor(t, "alice")

	oversized := bytes.Repeat([]byte("x"), testMaxUploadSize+1)
	rr := f.do(t, http.MethodPost, "/api/v1/files/huge.bin", token, oversized)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized upload = %d, want %d", rr.Code, http.StatusRequestEntityTooLarge)
	}

	// The rejected upload must not leave a version behind.
	get := f.do(t, http.MethodGet, "/api/v1/files/huge.bin", token, nil)
	if get.Code != http.StatusNotFound {
		t.Errorf("get after rejected upload = %d, want %d", get.Code, http.StatusNotFound)
	}
}

func TestUploadUnknownFileNotFoundOnDownload(t *testing.T) {
	f := newAPIFixture(t)
	token := f.tokenFor(t, "alice")

	rr := f.do(t, http.MethodGet, "/api/v1/files/missing.txt", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("get unknown file = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestLockEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	aliceToken := f.tokenFor(t, "alice")
	bobToken := f.tokenFor(t, "bob")
	adminToken := f.tokenFor(t, "admin")

	rr := f.do(t, http.MethodPost, "/api/v1/locks/report.txt", aliceToken, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("acquire = %d, body %s", rr.Code, rr.Body.String())
	}
	entry := decodeBody[map[string]any](t, rr)
	if entry["holder"] != "alice" {
		t.Errorf("holder = %v, want alice", entry["holder"])
	}

	t.Run("conflicting acquire fails fast", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/locks/report.txt", bobToken, nil)
		if rr.Code != http.StatusConflict {
			t.Errorf("acquire = %d, want %d", rr.Code, http.StatusConflict)
		}
		if !strings.Contains(rr.Body.String(), "alice") {
			t.Errorf("conflict body should name the holder, got %s", rr.Body.String())
		}
	})

	t.Run("upload against held lock conflicts", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/files/report.txt", bobToken, []byte("data"))
		if rr.Code != http.StatusConflict {
			t.Errorf("upload = %d, want %d", rr.Code, http.StatusConflict)
		}
	})

	t.Run("holder can still upload", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/files/report.txt", aliceToken, []byte("data"))
		if rr.Code != http.StatusCreated {
			t.Errorf("upload = %d, want %d", rr.Code, http.StatusCreated)
		}
	})

	// The upload consumed alice's lock; take it again for release tests.
	if rr := f.do(t, http.MethodPost, "/api/v1/locks/report.txt", aliceToken, nil); rr.Code != http.StatusCreated {
		t.Fatalf("re-acquire = %d", rr.Code)
	}

	t.Run("non-holder cannot release", func(t *testing.T) {
		rr := f.do(t, http.MethodDelete, "/api/v1/locks/report.txt", bobToken, nil)
		if rr.Code != http.StatusConflict {
			t.Errorf("release = %d, want %d", rr.Code, http.StatusConflict)
		}
	})

	t.Run("non-admin cannot force release", func(t *testing.T) {
		rr := f.do(t, http.MethodDelete, "/api/v1/locks/report.txt/force", bobToken, nil)
		if rr.Code != http.StatusForbidden {
			t.Errorf("force release = %d, want %d", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("admin force release", func(t *testing.T) {
		rr := f.do(t, http.MethodDelete, "/api/v1/locks/report.txt/force", adminToken, nil)
		if rr.Code != http.StatusNoContent {
			t.Errorf("force release = %d, want %d", rr.Code, http.StatusNoContent)
		}

		rr = f.do(t, http.MethodGet, "/api/v1/locks/report.txt", adminToken, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("lock lookup after force release = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})

	t.Run("non-admin cannot list locks", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/locks", aliceToken, nil)
		if rr.Code != http.StatusForbidden {
			t.Errorf("list = %d, want %d", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("admin lists locks", func(t *testing.T) {
		if rr := f.do(t, http.MethodPost, "/api/v1/locks/other.txt", bobToken, nil); rr.Code != http.StatusCreated {
			t.Fatalf("acquire = %d", rr.Code)
		}
		rr := f.do(t, http.MethodGet, "/api/v1/locks", adminToken, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("list = %d", rr.Code)
		}
		locks := decodeBody[[]map[string]any](t, rr)
		if len(locks) != 1 || locks[0]["name"] != "other.txt" {
			t.Errorf("unexpected lock listing: %v", locks)
		}
	})
}

func TestUserManagementRequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)
	aliceToken := f.tokenFor(t, "alice")
	adminToken := f.tokenFor(t, "admin")

	t.Run("non-admin forbidden", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/users", aliceToken, nil)
		if rr.Code != http.StatusForbidden {
			t.Errorf("list users = %d, want %d", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("admin creates user", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"username": "carol", "password": "carols-password"})
		rr := f.do(t, http.MethodPost, "/api/v1/users", adminToken, body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("create user = %d, body %s", rr.Code, rr.Body.String())
		}

		loginBody, _ := json.Marshal(map[string]string{"username": "carol", "password": "carols-password"})
		login := f.do(t, http.MethodPost, "/api/v1/auth/login", "", loginBody)
		if login.Code != http.StatusOK {
			t.Errorf("new user login = %d", login.Code)
		}
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"username": "alice", "password": "whatever-123"})
		rr := f.do(t, http.MethodPost, "/api/v1/users", adminToken, body)
		if rr.Code != http.StatusConflict {
			t.Errorf("duplicate create = %d, want %d", rr.Code, http.StatusConflict)
		}
	})

	t.Run("change own password", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"current_password": "password-alice",
			"new_password":     "new-alice-password",
		})
		rr := f.do(t, http.MethodPut, "/api/v1/users/me/password", aliceToken, body)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("change password = %d, body %s", rr.Code, rr.Body.String())
		}

		loginBody, _ := json.Marshal(map[string]string{"username": "alice", "password": "new-alice-password"})
		login := f.do(t, http.MethodPost, "/api/v1/auth/login", "", loginBody)
		if login.Code != http.StatusOK {
			t.Errorf("login with new password = %d", login.Code)
		}
	})

	t.Run("admin cannot delete self", func(t *testing.T) {
		rr := f.do(t, http.MethodDelete, "/api/v1/users/admin", adminToken, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("self delete = %d, want %d", rr.Code, http.StatusBadRequest)
		}
	})
}

func TestUploadPublishesEventToSubscribers(t *testing.T) {
	f := newAPIFixture(t)
	token := f.tokenFor(t, "alice")

	events, cancel := f.broadcaster.Subscribe()
	defer cancel()

	rr := f.do(t, http.MethodPost, "/api/v1/files/report.txt", token, []byte("payload"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload = %d", rr.Code)
	}

	select {
	case event := <-events:
		if event.File != "report.txt" || event.Version != 1 {
			t.Errorf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for upload event")
	}
}
