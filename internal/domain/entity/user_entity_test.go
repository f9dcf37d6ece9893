package entity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHasher struct {
	calls int
	fail  error
}

func (h *countingHasher) Hash(plain string) (string, error) {
	h.calls++
	if h.fail != nil {
		return "", h.fail
	}
	return "hashed:" + plain, nil
}

func (h *countingHasher) Compare(hash, plain string) bool {
	return hash == "hashed:"+plain
}

func TestUser_HashPasswordOnlyWhenChanged(t *testing.T) {
	h := &countingHasher{}
	u := NewUser("Ana", "ana@x.com")

	require.NoError(t, u.HashPassword(h))
	assert.Equal(t, 0, h.calls)
	assert.Empty(t, u.PasswordHash)

	u.SetPassword("secret1")
	assert.True(t, u.PasswordChanged())
	require.NoError(t, u.HashPassword(h))
	assert.Equal(t, 1, h.calls)
	assert.Equal(t, "hashed:secret1", u.PasswordHash)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.False(t, u.PasswordChanged())

	u.Name = "Ana Maria"
	require.NoError(t, u.HashPassword(h))
	assert.Equal(t, 1, h.calls, "unrelated updates must not rehash")
	assert.Equal(t, "hashed:secret1", u.PasswordHash)
}

func TestUser_HashPasswordFailure(t *testing.T) {
	boom := errors.New("boom")
	h := &countingHasher{fail: boom}
	u := NewUser("Ana", "ana@x.com")
	u.SetPassword("secret1")

	err := u.HashPassword(h)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, u.PasswordHash)
	assert.True(t, u.PasswordChanged())
}

func TestUser_HashPasswordRejectsShortPassword(t *testing.T) {
	h := &countingHasher{}
	u := NewUser("Ana", "ana@x.com")
	u.SetPassword("123")

	require.ErrorIs(t, u.HashPassword(h), ErrPasswordTooShort)
	assert.Equal(t, 0, h.calls)
}

func TestUser_StagedPasswordHashLeavesRecordUntouched(t *testing.T) {
	h := &countingHasher{}
	u := NewUser("Ana", "ana@x.com")
	u.SetPassword("secret1")

	hash, ok, err := u.StagedPasswordHash(h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hashed:secret1", hash)
	assert.Empty(t, u.PasswordHash)
	assert.True(t, u.PasswordChanged())

	u.CommitPasswordHash(hash)
	assert.Equal(t, hash, u.PasswordHash)
	assert.False(t, u.PasswordChanged())
}

func TestUser_ComparePassword(t *testing.T) {
	h := &countingHasher{}
	u := NewUser("Ana", "ana@x.com")
	assert.False(t, u.ComparePassword(h, ""))

	u.SetPassword("secret1")
	require.NoError(t, u.HashPassword(h))

	assert.True(t, u.ComparePassword(h, "secret1"))
	assert.False(t, u.ComparePassword(h, "secret1x"))
}

func TestUser_EnrollCourse(t *testing.T) {
	u := NewUser("Ana", "ana@x.com")

	assert.True(t, u.EnrollCourse("go-101"))
	assert.False(t, u.EnrollCourse("go-101"))
	assert.False(t, u.EnrollCourse("  "))
	assert.True(t, u.EnrollCourse("sql-201"))

	assert.Equal(t, []string{"go-101", "sql-201"}, u.CourseIDs)
	assert.True(t, u.IsEnrolled("sql-201"))
}

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name string
		user User
		want error
	}{
		{name: "ok", user: User{Name: "Ana", Email: "ana@x.com"}},
		{name: "missing name", user: User{Email: "ana@x.com"}, want: ErrNameRequired},
		{name: "missing email", user: User{Name: "Ana"}, want: ErrEmailRequired},
		{name: "no tld", user: User{Name: "Ana", Email: "ana@x"}, want: ErrInvalidEmail},
		{name: "whitespace", user: User{Name: "Ana", Email: "an a@x.com"}, want: ErrInvalidEmail},
		{name: "bad role", user: User{Name: "Ana", Email: "ana@x.com", Role: "root"}, want: ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.user
			err := u.Validate()
			if tt.want == nil {
				require.NoError(t, err)
				assert.Equal(t, RoleUser, u.Role)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewUser_Normalizes(t *testing.T) {
	u := NewUser("  Ana ", " Ana@X.com ")
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, "ana@x.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.False(t, u.IsVerified)
}

func TestPendingRegistration_Validate(t *testing.T) {
	ok := PendingRegistration{Name: "Ana", Email: "ana@x.com", Password: "secret1"}
	require.NoError(t, ok.Validate())

	short := ok
	short.Password = "12345"
	assert.ErrorIs(t, short.Validate(), ErrPasswordTooShort)

	long := ok
	long.Password = strings.Repeat("a", MaxPasswordLength+1)
	assert.ErrorIs(t, long.Validate(), ErrPasswordTooLong)

	limit := ok
	limit.Password = strings.Repeat("a", MaxPasswordLength)
	assert.NoError(t, limit.Validate())

	badEmail := ok
	badEmail.Email = "ana"
	assert.ErrorIs(t, badEmail.Validate(), ErrInvalidEmail)
}
