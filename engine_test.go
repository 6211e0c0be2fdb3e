package nexauth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockUserProvider struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	byEmail map[string]string

	createErr error
	updateErr error

	getCalls    int
	createCalls int
	updateCalls int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:   make(map[string]UserRecord),
		byEmail: make(map[string]string),
	}
}

func (m *mockUserProvider) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++

	userID, ok := m.byEmail[email]
	if !ok {
		return UserRecord{}, ErrProviderNotFound
	}
	return m.users[userID], nil
}

func (m *mockUserProvider) CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++

	if m.createErr != nil {
		return UserRecord{}, m.createErr
	}
	if _, exists := m.byEmail[input.Email]; exists {
		return UserRecord{}, ErrProviderDuplicateEmail
	}

	userID := fmt.Sprintf("u%d", len(m.users)+1)
	record := UserRecord{
		UserID:       userID,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
	}
	m.users[userID] = record
	m.byEmail[input.Email] = userID
	return record, nil
}

func (m *mockUserProvider) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++

	if m.updateErr != nil {
		return m.updateErr
	}
	user, ok := m.users[userID]
	if !ok {
		return ErrProviderNotFound
	}
	user.PasswordHash = newHash
	m.users[userID] = user
	return nil
}

// recorderNotifier captures sent messages so tests can read the code
// out of the email body.
type recorderNotifier struct {
	mu       sync.Mutex
	sent     []sentMessage
	sendErr  error
	failNext bool
}

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

var codePattern = regexp.MustCompile(`🔑 (\d+)`)

func (n *recorderNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.failNext {
		n.failNext = false
		return errors.New("smtp unreachable")
	}
	if n.sendErr != nil {
		return n.sendErr
	}

	n.sent = append(n.sent, sentMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (n *recorderNotifier) lastCode(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.sent) == 0 {
		t.Fatal("no messages sent")
	}
	match := codePattern.FindStringSubmatch(n.sent[len(n.sent)-1].Body)
	if match == nil {
		t.Fatalf("no code found in body: %q", n.sent[len(n.sent)-1].Body)
	}
	return match[1]
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Token.Secret = bytes.Repeat([]byte("k"), 32)
	// lighter argon2 so flow tests stay fast
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, rdb *redis.Client, up UserProvider, n Notifier) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserProvider(up).
		WithNotifier(n).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

// seedAccount registers a user through the engine so the stored hash
// matches the engine's parameters.
func seedAccount(t *testing.T, engine *Engine, first, last, email, password string) UserRecord {
	t.Helper()

	record, err := engine.CreateAccount(context.Background(), CreateAccountInput{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Password:  password,
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return record
}

// login runs the full two-step login and returns the authenticated
// token.
func login(t *testing.T, engine *Engine, notifier *recorderNotifier, email, password string) string {
	t.Helper()
	ctx := context.Background()

	token, err := engine.BeginLogin(ctx, "", email, password)
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}
	token, err = engine.ConfirmLogin(ctx, token, notifier.lastCode(t))
	if err != nil {
		t.Fatalf("ConfirmLogin failed: %v", err)
	}
	return token
}
