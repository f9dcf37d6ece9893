package activation

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
)

// DefaultTTL is how long an activation token stays valid.
const DefaultTTL = 5 * time.Minute

var (
	ErrMissingSecret = errors.New("activation secret is not configured")
	ErrTokenExpired  = errors.New("activation token expired")
	ErrTokenInvalid  = errors.New("activation token invalid")
)

// Config is the key material and lifetime used by an Issuer.
type Config struct {
	Secret string
	// EncryptionKey seals the payload. When empty a key is derived from Secret.
	EncryptionKey string
	TTL           time.Duration
}

// Ticket is the result of a registration attempt: the bearer token returned
// to the caller and the code delivered out-of-band.
type Ticket struct {
	Token     string
	Code      string
	TokenID   string
	ExpiresAt time.Time
}

// Verified is the content of a valid token.
type Verified struct {
	Payload   entity.PendingRegistration
	Code      string
	TokenID   string
	ExpiresAt time.Time
}

// Claims are the JWT claims of an activation token. Registration holds the
// sealed {user, activationCode} document.
type Claims struct {
	Registration string `json:"reg"`
	jwt.RegisteredClaims
}

type sealedContent struct {
	User           entity.PendingRegistration `json:"user"`
	ActivationCode string                     `json:"activationCode"`
}

// Issuer mints and verifies activation tokens.
type Issuer struct {
	secret []byte
	sealer *sealer
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

type Option func(*Issuer)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option { return func(i *Issuer) { i.now = now } }

// WithRandom overrides the source used for activation codes.
func WithRandom(r io.Reader) Option { return func(i *Issuer) { i.random = r } }

func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	material := cfg.EncryptionKey
	if material == "" {
		material = cfg.Secret
	}
	s, err := newSealer([]byte(material))
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	i := &Issuer{
		secret: []byte(cfg.Secret),
		sealer: s,
		ttl:    ttl,
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue creates a ticket for a pending registration.
func (i *Issuer) Issue(payload entity.PendingRegistration) (Ticket, error) {
	if i == nil || len(i.secret) == 0 || i.sealer == nil {
		return Ticket{}, ErrMissingSecret
	}
	code, err := GenerateCode(i.random, CodeDigits)
	if err != nil {
		return Ticket{}, err
	}

	jti := uuid.NewString()
	body, err := json.Marshal(sealedContent{User: payload, ActivationCode: code})
	if err != nil {
		return Ticket{}, fmt.Errorf("marshal activation payload: %w", err)
	}
	sealed, err := i.sealer.seal(body, []byte(jti))
	if err != nil {
		return Ticket{}, fmt.Errorf("seal activation payload: %w", err)
	}

	issuedAt := i.now().Truncate(time.Second)
	exp := issuedAt.Add(i.ttl)
	claims := &Claims{
		Registration: sealed,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(i.secret)
	if err != nil {
		return Ticket{}, fmt.Errorf("sign activation token: %w", err)
	}
	return Ticket{Token: s, Code: code, TokenID: jti, ExpiresAt: exp}, nil
}

// Verify checks signature and freshness and returns the embedded payload.
// A token is expired from the exact exp instant onwards.
func (i *Issuer) Verify(token string) (Verified, error) {
	if i == nil || len(i.secret) == 0 || i.sealer == nil {
		return Verified{}, ErrMissingSecret
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verified{}, ErrTokenExpired
		}
		return Verified{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tkn.Valid || claims.ID == "" || claims.Registration == "" {
		return Verified{}, ErrTokenInvalid
	}

	body, err := i.sealer.open(claims.Registration, []byte(claims.ID))
	if err != nil {
		return Verified{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	var content sealedContent
	if err := json.Unmarshal(body, &content); err != nil {
		return Verified{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return Verified{
		Payload:   content.User,
		Code:      content.ActivationCode,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
