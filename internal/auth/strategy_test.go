package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/gatekeep/internal/users"
)

// memRepo はテスト用のインメモリリポジトリです。
type memRepo struct {
	mu   sync.Mutex
	byID map[string]*users.User
	err  error // 設定するとすべての操作がこのエラーを返す
}

func newMemRepo() *memRepo {
	return &memRepo{byID: make(map[string]*users.User)}
}

func (r *memRepo) Create(ctx context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return users.ErrDuplicateEmail
		}
	}
	u.ID = bson.NewObjectID()
	clone := *u
	r.byID[u.ID.Hex()] = &clone
	return nil
}

func (r *memRepo) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r *memRepo) FindByID(ctx context.Context, id string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memRepo) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

func registerTestUser(t *testing.T, repo *memRepo, email, password string) *users.User {
	t.Helper()
	digest, err := HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	u := &users.User{Email: email, PasswordHash: digest}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return u
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	strategy := NewStrategy(newMemRepo())

	outcome, err := strategy.Authenticate(context.Background(), "a@b.com", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if outcome.Success() {
		t.Fatal("expected failure outcome")
	}
	if outcome.Reason != ReasonIncorrectEmail {
		t.Fatalf("unexpected reason: %q", outcome.Reason)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	repo := newMemRepo()
	registerTestUser(t, repo, "a@b.com", "hunter2")
	strategy := NewStrategy(repo)

	outcome, err := strategy.Authenticate(context.Background(), "a@b.com", "wrong")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if outcome.Success() {
		t.Fatal("expected failure outcome")
	}
	if outcome.Reason != ReasonIncorrectPassword {
		t.Fatalf("unexpected reason: %q", outcome.Reason)
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	repo := newMemRepo()
	created := registerTestUser(t, repo, "a@b.com", "hunter2")
	strategy := NewStrategy(repo)

	outcome, err := strategy.Authenticate(context.Background(), "a@b.com", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if !outcome.Success() {
		t.Fatalf("expected success, got reason %q", outcome.Reason)
	}
	if outcome.User.ID != created.ID {
		t.Fatalf("unexpected user: %s", outcome.User.ID.Hex())
	}
	if outcome.Reason != "" {
		t.Fatalf("success must carry no reason, got %q", outcome.Reason)
	}
}

func TestAuthenticateStoreFault(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("connection refused")
	strategy := NewStrategy(repo)

	_, err := strategy.Authenticate(context.Background(), "a@b.com", "hunter2")
	if err == nil {
		t.Fatal("expected store fault to surface as error")
	}
	if errors.Is(err, users.ErrNotFound) {
		t.Fatal("store fault must not be reported as not-found")
	}
}
