package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
)

type fakeStore struct {
	users map[string]User // by email
}

func newFakeStore() *fakeStore { return &fakeStore{users: map[string]User{}} }

func (f *fakeStore) Create(_ context.Context, u *User) error {
	if _, ok := f.users[u.Email]; ok {
		return ErrEmailTaken
	}
	u.ID = "user-" + u.Email
	f.users[u.Email] = *u
	return nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (User, error) {
	u, ok := f.users[email]
	if !ok {
		return User{}, apperr.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, apperr.ErrNotFound
}

func newTestService() *Service {
	return &Service{Store: newFakeStore(), Secret: []byte("test-secret")}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService()

	u, tok, err := svc.Register(context.Background(), "Jo@Example.com", "hunter2boogaloo", "Jo", "Doe")
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", u.Email)
	assert.NotEmpty(t, tok)
	assert.NotEqual(t, "hunter2boogaloo", u.PasswordHash)

	u2, tok2, err := svc.Login(context.Background(), "jo@example.com", "hunter2boogaloo")
	require.NoError(t, err)
	assert.Equal(t, u.ID, u2.ID)

	id, isAdmin, err := svc.ParseToken(tok2)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.False(t, isAdmin)
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService()

	var vErr *apperr.ValidationError
	_, _, err := svc.Register(context.Background(), "not-an-email", "hunter2boogaloo", "", "")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email", vErr.Field)

	_, _, err = svc.Register(context.Background(), "jo@example.com", "short", "", "")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "password", vErr.Field)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := newTestService()

	_, _, err := svc.Register(context.Background(), "jo@example.com", "hunter2boogaloo", "", "")
	require.NoError(t, err)

	var vErr *apperr.ValidationError
	_, _, err = svc.Register(context.Background(), "jo@example.com", "hunter2boogaloo", "", "")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email", vErr.Field)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := newTestService()
	_, _, err := svc.Register(context.Background(), "jo@example.com", "hunter2boogaloo", "", "")
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "jo@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "hunter2boogaloo")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestParseToken_Garbage(t *testing.T) {
	svc := newTestService()

	_, _, err := svc.ParseToken("not.a.jwt")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestParseToken_WrongSecret(t *testing.T) {
	svc := newTestService()
	_, tok, err := svc.Register(context.Background(), "jo@example.com", "hunter2boogaloo", "", "")
	require.NoError(t, err)

	other := &Service{Store: newFakeStore(), Secret: []byte("another-secret")}
	_, _, err = other.ParseToken(tok)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
