package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/honesta/lostfound-api/internal/config"
	"github.com/honesta/lostfound-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned when a password does not match its hash
var ErrPasswordMismatch = errors.New("password mismatch")

// CampusPolicy decides which emails and phone numbers may register for each role
type CampusPolicy struct {
	studentDomain  string
	facultyDomain  string
	student        *regexp.Regexp
	faculty        *regexp.Regexp
	minPhoneLength int
}

// NewCampusPolicy compiles the campus email rules.
// Students register with a roll number (lower-case letters and digits only),
// faculty with any conventional mailbox name.
func NewCampusPolicy(cfg *config.AuthConfig) *CampusPolicy {
	return &CampusPolicy{
		studentDomain:  cfg.StudentEmailDomain,
		facultyDomain:  cfg.FacultyEmailDomain,
		student:        regexp.MustCompile(`^[0-9a-z]+@` + regexp.QuoteMeta(strings.ToLower(cfg.StudentEmailDomain)) + `$`),
		faculty:        regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@` + regexp.QuoteMeta(strings.ToLower(cfg.FacultyEmailDomain)) + `$`),
		minPhoneLength: cfg.MinPhoneLength,
	}
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailAllowed reports whether email may register with role
func (p *CampusPolicy) EmailAllowed(role domain.UserRole, email string) bool {
	email = NormalizeEmail(email)
	switch role {
	case domain.RoleStudent:
		return p.student.MatchString(email)
	case domain.RoleFaculty:
		return p.faculty.MatchString(email)
	default:
		return false
	}
}

// EmailRuleMessage explains which addresses are accepted for role
func (p *CampusPolicy) EmailRuleMessage(role domain.UserRole) string {
	if role == domain.RoleStudent {
		return fmt.Sprintf("Only campus student (@%s) emails are allowed", p.studentDomain)
	}
	return fmt.Sprintf("Only campus faculty (@%s) emails are allowed", p.facultyDomain)
}

// PhoneAllowed reports whether phone has enough digits
func (p *CampusPolicy) PhoneAllowed(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '-' || r == '+' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= p.minPhoneLength
}

// CampusID derives the campus identifier from an email: the upper-cased local part
func CampusID(email string) string {
	local, _, _ := strings.Cut(NormalizeEmail(email), "@")
	return strings.ToUpper(local)
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a password against a bcrypt hash
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
