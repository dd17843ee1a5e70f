package core

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// MinimumAge is the youngest age accepted at registration.
const MinimumAge = 18

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyEmail       = errors.New("empty email")
	ErrEmptyPeriod      = errors.New("empty period")
	ErrEmptyDeadline    = errors.New("empty deadline")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidKind      = errors.New("invalid account kind")
	ErrInvalidCPF       = errors.New("CPF must have 11 digits")
	ErrUnderage         = errors.New("must be at least 18 years old")
	ErrShortPassword    = errors.New("password too short (min 8 characters)")
	ErrPasswordMismatch = errors.New("password confirmation does not match")
)

// dateLayout is the wire format for dates (ISO calendar date).
const dateLayout = "2006-01-02"

// ValidateDate checks a wire-format calendar date.
func ValidateDate(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrInvalidDate
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// ValidateCPF checks that the value carries exactly 11 digits, ignoring
// punctuation.
func ValidateCPF(s string) error {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.' || r == '-' || r == ' ':
			// Formatting characters are tolerated.
		default:
			return ErrInvalidCPF
		}
	}
	if digits != 11 {
		return ErrInvalidCPF
	}
	return nil
}

// ValidateBirthdate checks the wire date format and the minimum-age rule.
func ValidateBirthdate(s string, now time.Time) error {
	if err := ValidateDate(s); err != nil {
		return err
	}
	birth, _ := time.Parse(dateLayout, s)
	cutoff := birth.AddDate(MinimumAge, 0, 0)
	if now.Before(cutoff) {
		return ErrUnderage
	}
	return nil
}

// ValidatePassword checks the minimum length and the confirmation match.
func ValidatePassword(password, confirmation string) error {
	if len(password) < 8 {
		return ErrShortPassword
	}
	if password != confirmation {
		return ErrPasswordMismatch
	}
	return nil
}

type TransactionPayload struct {
	Description string          `json:"descricao"`
	Category    string          `json:"categoria"`
	Type        TransactionType `json:"tipo"`
	Amount      float64         `json:"valor"`
	Date        string          `json:"data"`
	AccountID   int64           `json:"contaId,omitempty"`
	Note        string          `json:"observacao,omitempty"`
}

func (p TransactionPayload) Validate() error {
	if strings.TrimSpace(p.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(p.Category) == "" {
		return ErrEmptyCategory
	}
	if !p.Type.IsValid() {
		return ErrInvalidType
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	return ValidateDate(p.Date)
}

type BudgetPayload struct {
	Name         string  `json:"nome"`
	CurrentSpend float64 `json:"gastoAtual"`
	Limit        float64 `json:"limite"`
	Period       string  `json:"competencia"`
}

func (p BudgetPayload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.CurrentSpend < 0 || p.Limit <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(p.Period) == "" {
		return ErrEmptyPeriod
	}
	return nil
}

type GoalPayload struct {
	Title         string  `json:"titulo"`
	CurrentAmount float64 `json:"atual"`
	TargetAmount  float64 `json:"alvo"`
	Deadline      string  `json:"prazo"`
}

func (p GoalPayload) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	if p.CurrentAmount < 0 || p.TargetAmount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(p.Deadline) == "" {
		return ErrEmptyDeadline
	}
	return nil
}

type AccountPayload struct {
	Name    string      `json:"nome"`
	Bank    string      `json:"banco"`
	Kind    AccountKind `json:"tipo"`
	Balance float64     `json:"saldo"`
}

func (p AccountPayload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if !p.Kind.IsValid() {
		return ErrInvalidKind
	}
	if p.Balance < 0 {
		return ErrInvalidAmount
	}
	return nil
}

type ProfilePayload struct {
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func (p ProfilePayload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (p SettingsPreferences) Validate() error {
	if !p.ThemePreference.IsValid() {
		return errors.New("invalid theme preference")
	}
	return nil
}
