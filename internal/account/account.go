// Package account is a local mock of user accounts: any e-mail and password
// logs in, and what it really keeps is each user's display preferences.
package account

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DelxAbde/panel-pal-translate/internal/job"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrExists       = errors.New("user already exists")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

const GuestUsername = "Guest"

type Preferences struct {
	DefaultSourceLanguage   string `json:"default_source_language"`
	DefaultTargetLanguage   string `json:"default_target_language"`
	DefaultFont             string `json:"default_font"`
	DefaultFontSize         int    `json:"default_font_size"`
	DefaultTranslationStyle string `json:"default_translation_style"`
}

func DefaultPreferences() Preferences {
	d := job.DefaultSettings()
	return Preferences{
		DefaultSourceLanguage:   d.SourceLanguage,
		DefaultTargetLanguage:   d.TargetLanguage,
		DefaultFont:             d.Font,
		DefaultFontSize:         d.FontSize,
		DefaultTranslationStyle: d.TranslationStyle,
	}
}

// Settings converts the preferences into job defaults.
func (p Preferences) Settings() job.Settings {
	return job.Settings{
		SourceLanguage:   p.DefaultSourceLanguage,
		TargetLanguage:   p.DefaultTargetLanguage,
		Font:             p.DefaultFont,
		FontSize:         p.DefaultFontSize,
		TranslationStyle: p.DefaultTranslationStyle,
	}
}

// Validate rejects preferences no job could be created from. Empty fields
// are filled from the defaults first.
func (p *Preferences) Validate() error {
	d := DefaultPreferences()
	if p.DefaultSourceLanguage == "" {
		p.DefaultSourceLanguage = d.DefaultSourceLanguage
	}
	if p.DefaultTargetLanguage == "" {
		p.DefaultTargetLanguage = d.DefaultTargetLanguage
	}
	if p.DefaultFont == "" {
		p.DefaultFont = d.DefaultFont
	}
	if p.DefaultFontSize == 0 {
		p.DefaultFontSize = d.DefaultFontSize
	}
	if p.DefaultTranslationStyle == "" {
		p.DefaultTranslationStyle = d.DefaultTranslationStyle
	}

	if p.DefaultTargetLanguage == job.AutoLanguage {
		return fmt.Errorf("%w: default target language cannot be %q", ErrInvalidInput, job.AutoLanguage)
	}
	if p.DefaultFontSize < 0 {
		return fmt.Errorf("%w: font size must be positive", ErrInvalidInput)
	}
	return nil
}

type User struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email,omitempty"`
	Guest       bool        `json:"guest"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
}

func newUser(username, email string) *User {
	return &User{
		ID:          uuid.NewString(),
		Username:    username,
		Email:       strings.ToLower(email),
		Preferences: DefaultPreferences(),
		CreatedAt:   time.Now().UTC(),
	}
}

// usernameFromEmail derives a display name from the address's local part.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
