package entity

// PendingRegistration is the not-yet-persisted signup payload carried
// inside an activation token.
type PendingRegistration struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AvatarRef string `json:"avatar"`
}

// Validate checks the payload with the same rules the user record enforces.
func (p PendingRegistration) Validate() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if err := ValidateEmail(p.Email); err != nil {
		return err
	}
	return ValidatePassword(p.Password)
}
