package templates

import (
	"time"

	"github.com/oksasatya/go-lms-registration/config"
)

// Option pattern
type Option func(map[string]any)

func WithExpiresIn(dur time.Duration) Option {
	return func(d map[string]any) {
		d["ExpiresInMinutes"] = int(dur.Round(time.Minute) / time.Minute)
	}
}

func WithBranding(cfg *config.Config) Option {
	return func(d map[string]any) {
		if cfg == nil {
			return
		}
		d["AppName"] = cfg.AppName
		d["CompanyName"] = cfg.CompanyName
		d["CompanyAddress"] = cfg.CompanyAddress
		d["LogoURL"] = cfg.LogoURL
		d["SupportURL"] = cfg.SupportURL
		d["PrivacyURL"] = cfg.PrivacyURL
	}
}

// NewActivationData builds the activation mail data:
// {"user": {"name": ...}, "activationCode": ...} plus optional extras.
func NewActivationData(name, code string, opts ...Option) map[string]any {
	d := map[string]any{
		"user":           map[string]any{"name": name},
		"activationCode": code,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}
