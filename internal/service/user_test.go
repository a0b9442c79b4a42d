package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"warbler/internal/cache"
	"warbler/internal/cache/cachetest"
	"warbler/internal/model"
	"warbler/internal/repository/repotest"
)

// =============================================================================
// MOCKS
// =============================================================================

// passthroughTx runs fn directly, the way the in-memory store does.
type passthroughTx struct {
	calls int
}

func (p *passthroughTx) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	p.calls++
	return fn(nil)
}

type mockUserRepository struct {
	createFn        func(ctx context.Context, user *model.User) error
	getByIDFn       func(ctx context.Context, id int64) (*model.User, error)
	getByUsernameFn func(ctx context.Context, username string) (*model.User, error)
	updateFn        func(ctx context.Context, user *model.User) error

	createCalls []*model.User
}

func (m *mockUserRepository) Create(ctx context.Context, tx *sqlx.Tx, user *model.User) error {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) Search(ctx context.Context, query string) ([]model.UserSummary, error) {
	return nil, nil
}

func (m *mockUserRepository) Update(ctx context.Context, tx *sqlx.Tx, user *model.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	return nil
}

func (m *mockUserRepository) GetStats(ctx context.Context, id int64) (*model.UserStats, error) {
	return &model.UserStats{}, nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

// =============================================================================
// SIGNUP TESTS
// =============================================================================

func TestUserService_Signup_Success(t *testing.T) {
	// ARRANGE
	mockRepo := &mockUserRepository{
		createFn: func(ctx context.Context, user *model.User) error {
			user.ID = 1
			user.CreatedAt = time.Now()
			return nil
		},
	}
	tx := &passthroughTx{}
	svc := NewUserService(tx, mockRepo,
		WithHashCost(bcrypt.MinCost),
		WithDefaultImages("/default.png", "/hero.jpg"))

	req := &model.SignupRequest{
		Username: "testuser",
		Email:    "test@test.com",
		Password: "HASHED_PASSWORD",
	}

	// ACT
	user, err := svc.Signup(context.Background(), req)

	// ASSERT
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if user.ID != 1 {
		t.Errorf("id = %d, want 1", user.ID)
	}
	if user.Password == req.Password {
		t.Error("password should be hashed, not stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
	if user.ImageURL != "/default.png" || user.HeaderImageURL != "/hero.jpg" {
		t.Errorf("images = %q/%q, want defaults", user.ImageURL, user.HeaderImageURL)
	}
	if tx.calls != 1 {
		t.Errorf("expected one transaction, got %d", tx.calls)
	}
}

func TestUserService_Signup_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		req  model.SignupRequest
		want error
	}{
		{"no username", model.SignupRequest{Email: "a@b.com", Password: "pw"}, model.ErrUsernameRequired},
		{"no email", model.SignupRequest{Username: "a", Password: "pw"}, model.ErrEmailRequired},
		{"no password", model.SignupRequest{Username: "a", Email: "a@b.com"}, model.ErrPasswordRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mockUserRepository{}
			svc := NewUserService(&passthroughTx{}, mockRepo, WithHashCost(bcrypt.MinCost))

			_, err := svc.Signup(context.Background(), &tt.req)

			if !errors.Is(err, model.ErrValidation) {
				t.Errorf("expected ErrValidation, got: %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got: %v", tt.want, err)
			}
			if len(mockRepo.createCalls) != 0 {
				t.Error("Create should not be called when validation fails")
			}
		})
	}
}

// Passwords are taken verbatim: only an empty one is rejected.
func TestUserService_Signup_WhitespacePasswordIsAccepted(t *testing.T) {
	mockRepo := &mockUserRepository{}
	svc := NewUserService(&passthroughTx{}, mockRepo, WithHashCost(bcrypt.MinCost))

	user, err := svc.Signup(context.Background(), &model.SignupRequest{
		Username: "spacey",
		Email:    "spacey@test.com",
		Password: "   ",
	})

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(mockRepo.createCalls) != 1 {
		t.Fatalf("Create called %d times, want 1", len(mockRepo.createCalls))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("   ")); err != nil {
		t.Errorf("stored hash does not match the whitespace password: %v", err)
	}
}

func TestUserService_Signup_DuplicateUsername(t *testing.T) {
	mockRepo := &mockUserRepository{
		createFn: func(ctx context.Context, user *model.User) error {
			return &model.IntegrityError{Constraint: "users_username_key", Err: model.ErrUsernameTaken}
		},
	}
	svc := NewUserService(&passthroughTx{}, mockRepo, WithHashCost(bcrypt.MinCost))

	_, err := svc.Signup(context.Background(), &model.SignupRequest{
		Username: "testuser", Email: "other@test.com", Password: "pw",
	})

	if !errors.Is(err, model.ErrIntegrityViolation) {
		t.Errorf("expected ErrIntegrityViolation, got: %v", err)
	}
	if !errors.Is(err, model.ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got: %v", err)
	}
}

func TestUserService_Signup_DuplicateEmailLeavesStoreUnchanged(t *testing.T) {
	store := repotest.NewStore()
	svc := NewUserService(store.Transactor(), store.Users(), WithHashCost(bcrypt.MinCost))
	ctx := context.Background()

	if _, err := svc.Signup(ctx, &model.SignupRequest{Username: "u1", Email: "same@test.com", Password: "pw"}); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	_, err := svc.Signup(ctx, &model.SignupRequest{Username: "u2", Email: "same@test.com", Password: "pw"})
	if !errors.Is(err, model.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got: %v", err)
	}

	if users, _, _, _ := store.Counts(); users != 1 {
		t.Errorf("users = %d, want 1", users)
	}
}

// =============================================================================
// AUTHENTICATE TESTS
// =============================================================================

func TestUserService_Authenticate(t *testing.T) {
	stored := &model.User{ID: 7, Username: "testuser", Password: hashed(t, "HASHED_PASSWORD")}
	mockRepo := &mockUserRepository{
		getByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			if username == stored.Username {
				return stored, nil
			}
			return nil, model.ErrUserNotFound
		},
	}
	svc := NewUserService(&passthroughTx{}, mockRepo)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid credentials", "testuser", "HASHED_PASSWORD", nil},
		{"wrong password", "testuser", "badpassword", model.ErrInvalidCredentials},
		{"unknown username", "badusername", "HASHED_PASSWORD", model.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Authenticate(context.Background(), tt.username, tt.password)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got: %v", tt.wantErr, err)
				}
				if user != nil {
					t.Error("no user should be returned on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if user.ID != stored.ID {
				t.Errorf("id = %d, want %d", user.ID, stored.ID)
			}
		})
	}
}

func TestUserService_Authenticate_StoreError(t *testing.T) {
	boom := errors.New("connection refused")
	mockRepo := &mockUserRepository{
		getByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return nil, boom
		},
	}
	svc := NewUserService(&passthroughTx{}, mockRepo)

	_, err := svc.Authenticate(context.Background(), "testuser", "pw")

	if !errors.Is(err, boom) {
		t.Errorf("expected store error to be wrapped, got: %v", err)
	}
	if errors.Is(err, model.ErrInvalidCredentials) {
		t.Error("a store failure must not look like bad credentials")
	}
}

// =============================================================================
// PROFILE TESTS
// =============================================================================

func TestUserService_UpdateProfile_RequiresCurrentPassword(t *testing.T) {
	current := &model.User{ID: 3, Username: "testuser", Email: "test@test.com", Password: hashed(t, "pw")}
	updated := false
	mockRepo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.User, error) { return current, nil },
		getByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return current, nil
		},
		updateFn: func(ctx context.Context, user *model.User) error {
			updated = true
			return nil
		},
	}
	svc := NewUserService(&passthroughTx{}, mockRepo, WithDefaultImages("/default.png", "/hero.jpg"))

	_, err := svc.UpdateProfile(context.Background(), 3, &model.UpdateProfileRequest{
		Username: "renamed", Email: "test@test.com", Password: "wrong",
	})
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got: %v", err)
	}
	if updated {
		t.Fatal("Update should not be called with a wrong password")
	}

	user, err := svc.UpdateProfile(context.Background(), 3, &model.UpdateProfileRequest{
		Username: "renamed", Email: "test@test.com", Bio: "  hi  ", Password: "pw",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if user.Username != "renamed" {
		t.Errorf("username = %q, want renamed", user.Username)
	}
	if user.Bio == nil || *user.Bio != "hi" {
		t.Errorf("bio = %v, want hi", user.Bio)
	}
	if user.Location != nil {
		t.Errorf("location = %v, want nil", user.Location)
	}
	if user.ImageURL != "/default.png" {
		t.Errorf("image = %q, want default", user.ImageURL)
	}
}

func TestUserService_Delete_CascadesAndDropsTimeline(t *testing.T) {
	store := repotest.NewStore()
	timelines := cachetest.New()
	svc := NewUserService(store.Transactor(), store.Users(), WithTimelineCache(timelines))
	ctx := context.Background()

	u1 := store.SeedUser(model.User{Username: "u1", Email: "u1@test.com", Password: "x"})
	u2 := store.SeedUser(model.User{Username: "u2", Email: "u2@test.com", Password: "x"})
	m := store.SeedMessage(model.Message{Text: "hello", UserID: u1.ID})
	store.SeedFollow(u1.ID, u2.ID)
	store.SeedFollow(u2.ID, u1.ID)
	_ = timelines.WarmCache(ctx, u1.ID, []cache.MessageScore{{MessageID: m.ID, Timestamp: m.Timestamp.UnixMilli()}})

	if err := svc.Delete(ctx, u1.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	users, messages, follows, likes := store.Counts()
	if users != 1 || messages != 0 || follows != 0 || likes != 0 {
		t.Errorf("counts = %d/%d/%d/%d, want 1/0/0/0", users, messages, follows, likes)
	}
	if exists, _ := timelines.Exists(ctx, u1.ID); exists {
		t.Error("timeline of the deleted user should be dropped")
	}
}
