package entity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	ErrNameRequired     = errors.New("name is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrInvalidEmail     = errors.New("email is not valid")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	ErrPasswordTooLong  = fmt.Errorf("password must be at most %d bytes long", MaxPasswordLength)
	ErrInvalidRole      = errors.New("role is not valid")
)

// PasswordHasher is the one-way transform applied to passwords before persistence.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

// Avatar references an uploaded profile image.
type Avatar struct {
	PublicID string
	URL      string
}

// User is the aggregate root for user domain
// Passwords are stored as bcrypt hashes in PasswordHash. The plaintext only
// lives in memory between SetPassword and the next HashPassword call.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Avatar       Avatar
	Role         Role
	IsVerified   bool
	CourseIDs    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	password        string
	passwordChanged bool
}

// NewUser builds an unverified user with the default role.
func NewUser(name, email string) *User {
	return &User{
		Name:  strings.TrimSpace(name),
		Email: NormalizeEmail(email),
		Role:  RoleUser,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address syntax.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword checks a plaintext password before it is accepted.
func ValidatePassword(plain string) error {
	if plain == "" {
		return ErrPasswordRequired
	}
	if len(plain) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(plain) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// SetPassword stages a new plaintext password. It is hashed on the next save.
func (u *User) SetPassword(plain string) {
	u.password = plain
	u.passwordChanged = true
}

// PasswordChanged reports whether a plaintext password is waiting to be hashed.
func (u *User) PasswordChanged() bool {
	return u.passwordChanged
}

// HashPassword replaces a staged plaintext password with its hash.
// It is a no-op when the password was not set or changed.
func (u *User) HashPassword(h PasswordHasher) error {
	hash, ok, err := u.StagedPasswordHash(h)
	if err != nil || !ok {
		return err
	}
	u.CommitPasswordHash(hash)
	return nil
}

// StagedPasswordHash hashes the staged plaintext without touching the
// record. ok is false when no password is staged.
func (u *User) StagedPasswordHash(h PasswordHasher) (hash string, ok bool, err error) {
	if !u.passwordChanged {
		return "", false, nil
	}
	if err := ValidatePassword(u.password); err != nil {
		return "", false, err
	}
	hash, err = h.Hash(u.password)
	if err != nil {
		return "", false, fmt.Errorf("hash password: %w", err)
	}
	return hash, true, nil
}

// CommitPasswordHash stores hash and drops the staged plaintext.
func (u *User) CommitPasswordHash(hash string) {
	u.PasswordHash = hash
	u.password = ""
	u.passwordChanged = false
}

// ComparePassword checks candidate against the stored hash.
func (u *User) ComparePassword(h PasswordHasher, candidate string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return h.Compare(u.PasswordHash, candidate)
}

// EnrollCourse adds a course id; enrolling twice is a no-op.
func (u *User) EnrollCourse(courseID string) bool {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" || u.IsEnrolled(courseID) {
		return false
	}
	u.CourseIDs = append(u.CourseIDs, courseID)
	return true
}

func (u *User) IsEnrolled(courseID string) bool {
	for _, id := range u.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// Validate checks the invariants that must hold before a write.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrNameRequired
	}
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}
