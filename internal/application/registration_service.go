package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"expvar"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
	repo "github.com/oksasatya/go-lms-registration/internal/domain/repository"
	"github.com/oksasatya/go-lms-registration/pkg/activation"
	"github.com/oksasatya/go-lms-registration/pkg/mailer"
	"github.com/oksasatya/go-lms-registration/pkg/mailer/templates"
)

var (
	registrationsStarted = expvar.NewInt("registrations_started")
	registrationsFailed  = expvar.NewInt("registrations_failed")
	activationMailsSent  = expvar.NewInt("activation_mails_sent")
	usersActivated       = expvar.NewInt("users_activated")
)

// TicketIssuer mints and verifies activation tokens.
type TicketIssuer interface {
	Issue(payload entity.PendingRegistration) (activation.Ticket, error)
	Verify(token string) (activation.Verified, error)
}

// MailRenderer renders a named mail template.
type MailRenderer interface {
	Render(name string, data map[string]any) (templates.Rendered, error)
}

// TicketLedger records consumed activation tokens.
type TicketLedger interface {
	// Claim marks tokenID as used for ttl. It reports false when the token
	// was already claimed.
	Claim(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, tokenID string) error
	// RecordMiss counts a wrong code for tokenID and returns the total so far.
	RecordMiss(ctx context.Context, tokenID string, ttl time.Duration) (int64, error)
}

const defaultMaxAttempts = 5

// UserIndexer publishes activated users to the search index.
type UserIndexer interface {
	IndexUser(ctx context.Context, u *entity.User) error
}

// RegistrationService runs the signup flow: register issues a ticket and
// mails the code, activate exchanges token and code for a stored user.
type RegistrationService struct {
	Repo     repo.UserRepository
	Issuer   TicketIssuer
	Renderer MailRenderer
	Mailer   mailer.Sender
	Ledger   TicketLedger
	Avatars  repo.AvatarRepository
	Indexer  UserIndexer
	Logger   *logrus.Logger

	Subject     string
	MailTimeout time.Duration
	MailOptions []templates.Option
	// MaxAttempts is the number of wrong codes after which a token is burned.
	MaxAttempts int

	now func() time.Time
}

// RegistrationDeps lists the collaborators of a RegistrationService.
type RegistrationDeps struct {
	Repo        repo.UserRepository
	Issuer      TicketIssuer
	Renderer    MailRenderer
	Mailer      mailer.Sender
	Ledger      TicketLedger
	Avatars     repo.AvatarRepository
	Indexer     UserIndexer
	Logger      *logrus.Logger
	Subject     string
	MailTimeout time.Duration
	MaxAttempts int
	MailOptions []templates.Option
}

// NewRegistrationService fills in defaults for the subject, renderer, logger and attempt limit.
func NewRegistrationService(d RegistrationDeps) *RegistrationService {
	subject := d.Subject
	if subject == "" {
		subject = "Activate your account"
	}
	renderer := d.Renderer
	if renderer == nil {
		renderer = templates.Renderer{}
	}
	logger := d.Logger
	if logger == nil {
		logger = logrus.New()
	}
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &RegistrationService{
		Repo:        d.Repo,
		Issuer:      d.Issuer,
		Renderer:    renderer,
		Mailer:      d.Mailer,
		Ledger:      d.Ledger,
		Avatars:     d.Avatars,
		Indexer:     d.Indexer,
		Logger:      logger,
		Subject:     subject,
		MailTimeout: d.MailTimeout,
		MailOptions: d.MailOptions,
		MaxAttempts: maxAttempts,
		now:         time.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Avatar   string
}

type RegisterResult struct {
	ActivationToken string
	ExpiresAt       time.Time
	Message         string
}

type ActivateInput struct {
	Token string
	Code  string
}

// Register checks the email is free, issues an activation ticket and mails
// its code. Nothing is persisted; the code is only delivered by mail.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	registrationsStarted.Add(1)
	res, err := s.register(ctx, in)
	if err != nil {
		registrationsFailed.Add(1)
		return nil, err
	}
	return res, nil
}

func (s *RegistrationService) register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	payload := entity.PendingRegistration{
		Name:      strings.TrimSpace(in.Name),
		Email:     entity.NormalizeEmail(in.Email),
		Password:  in.Password,
		AvatarRef: strings.TrimSpace(in.Avatar),
	}
	if err := payload.Validate(); err != nil {
		return nil, newError(KindValidation, err.Error(), err)
	}
	log := s.Logger.WithField("email", payload.Email)

	existing, err := s.Repo.FindByEmail(ctx, payload.Email)
	if err != nil {
		log.WithError(err).Error("lookup user by email failed")
		return nil, newError(KindInternal, ErrInternal.Message, err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}
	if _, err := s.resolveAvatar(ctx, payload.AvatarRef); err != nil {
		return nil, err
	}

	ticket, err := s.Issuer.Issue(payload)
	if err != nil {
		if errors.Is(err, activation.ErrMissingSecret) {
			log.WithError(err).Error("activation issuer is not configured")
			return nil, newError(KindConfiguration, ErrConfiguration.Message, err)
		}
		log.WithError(err).Error("issue activation ticket failed")
		return nil, newError(KindInternal, ErrInternal.Message, err)
	}

	opts := append([]templates.Option{templates.WithExpiresIn(ticket.ExpiresAt.Sub(s.now()))}, s.MailOptions...)
	data := templates.NewActivationData(payload.Name, ticket.Code, opts...)
	rendered, err := s.Renderer.Render(templates.ActivationMail, data)
	if err != nil {
		log.WithError(err).Error("render activation mail failed")
		return nil, newError(KindInternal, ErrInternal.Message, err)
	}

	msg := mailer.Message{
		To:       payload.Email,
		Subject:  s.Subject,
		Template: templates.ActivationMail,
		Data:     data,
		Text:     rendered.Text,
		HTML:     rendered.HTML,
	}
	if err := s.send(ctx, msg); err != nil {
		log.WithError(err).Warn("send activation mail failed")
		return nil, newError(KindMailTransport, err.Error(), err)
	}
	activationMailsSent.Add(1)

	log.WithField("token_id", ticket.TokenID).Info("activation mail sent")
	return &RegisterResult{
		ActivationToken: ticket.Token,
		ExpiresAt:       ticket.ExpiresAt,
		Message:         fmt.Sprintf("Please check your email: %s to activate your account", payload.Email),
	}, nil
}

func (s *RegistrationService) send(ctx context.Context, msg mailer.Message) error {
	if s.Mailer == nil {
		return errors.New("mail transport not configured")
	}
	if s.MailTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.MailTimeout)
		defer cancel()
	}
	return s.Mailer.Send(ctx, msg)
}

// Activate exchanges a token and its mailed code for a verified user.
// Each token creates at most one user.
func (s *RegistrationService) Activate(ctx context.Context, in ActivateInput) (*entity.User, error) {
	v, err := s.Issuer.Verify(in.Token)
	switch {
	case err == nil:
	case errors.Is(err, activation.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, activation.ErrMissingSecret):
		return nil, newError(KindConfiguration, ErrConfiguration.Message, err)
	default:
		return nil, newError(KindTokenInvalid, ErrTokenInvalid.Message, err)
	}

	log := s.Logger.WithFields(logrus.Fields{"email": v.Payload.Email, "token_id": v.TokenID})
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(in.Code)), []byte(v.Code)) != 1 {
		return nil, s.recordMiss(ctx, log, v)
	}

	if s.Ledger != nil {
		ok, err := s.Ledger.Claim(ctx, v.TokenID, s.remaining(v))
		if err != nil {
			log.WithError(err).Error("claim activation token failed")
			return nil, newError(KindInternal, ErrInternal.Message, err)
		}
		if !ok {
			return nil, ErrTokenConsumed
		}
	}

	u, err := s.createUser(ctx, v.Payload)
	if err != nil {
		if KindOf(err) != KindDuplicateEmail {
			s.release(ctx, log, v.TokenID)
		}
		return nil, err
	}
	usersActivated.Add(1)

	if s.Indexer != nil {
		if err := s.Indexer.IndexUser(ctx, u); err != nil {
			log.WithError(err).Warn("index activated user failed")
		}
	}
	log.WithField("user_id", u.ID).Info("user activated")
	return u, nil
}

func (s *RegistrationService) createUser(ctx context.Context, p entity.PendingRegistration) (*entity.User, error) {
	existing, err := s.Repo.FindByEmail(ctx, p.Email)
	if err != nil {
		return nil, newError(KindInternal, ErrInternal.Message, err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	u := entity.NewUser(p.Name, p.Email)
	u.IsVerified = true
	u.SetPassword(p.Password)

	avatar, err := s.resolveAvatar(ctx, p.AvatarRef)
	if err != nil {
		return nil, err
	}
	u.Avatar = avatar

	if err := s.Repo.Save(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		if errors.Is(err, entity.ErrPasswordTooShort) || errors.Is(err, entity.ErrPasswordTooLong) ||
			errors.Is(err, entity.ErrPasswordRequired) {
			return nil, newError(KindValidation, err.Error(), err)
		}
		return nil, newError(KindInternal, ErrInternal.Message, err)
	}
	return u, nil
}

// resolveAvatar looks up an uploaded avatar. An empty ref means no avatar.
func (s *RegistrationService) resolveAvatar(ctx context.Context, ref string) (entity.Avatar, error) {
	if ref == "" {
		return entity.Avatar{}, nil
	}
	if s.Avatars == nil {
		return entity.Avatar{}, newError(KindValidation, "avatar uploads are not enabled", repo.ErrAvatarNotConfigured)
	}
	avatar, err := s.Avatars.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, repo.ErrAvatarNotFound) {
			return entity.Avatar{}, newError(KindValidation, "avatar not found", err)
		}
		return entity.Avatar{}, newError(KindInternal, ErrInternal.Message, err)
	}
	return avatar, nil
}

// recordMiss counts a wrong code and burns the token once MaxAttempts
// wrong codes were seen.
func (s *RegistrationService) recordMiss(ctx context.Context, log *logrus.Entry, v activation.Verified) error {
	if s.Ledger == nil {
		return ErrInvalidActivationCode
	}
	ttl := s.remaining(v)
	n, err := s.Ledger.RecordMiss(ctx, v.TokenID, ttl)
	if err != nil {
		log.WithError(err).Error("record wrong activation code failed")
		return newError(KindInternal, ErrInternal.Message, err)
	}
	if n < int64(s.MaxAttempts) {
		return ErrInvalidActivationCode
	}
	if _, err := s.Ledger.Claim(ctx, v.TokenID, ttl); err != nil {
		log.WithError(err).Error("burn activation token failed")
	}
	log.WithField("attempts", n).Warn("activation token burned after wrong codes")
	return ErrTooManyAttempts
}

// remaining is how long the ledger must remember v.
func (s *RegistrationService) remaining(v activation.Verified) time.Duration {
	ttl := v.ExpiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *RegistrationService) release(ctx context.Context, log *logrus.Entry, tokenID string) {
	if s.Ledger == nil {
		return
	}
	if err := s.Ledger.Release(ctx, tokenID); err != nil {
		log.WithError(err).Warn("release activation token failed")
	}
}
