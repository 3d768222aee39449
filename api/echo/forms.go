package echo

import (
	"net/mail"
	"strings"
)

// User-visible messages. Wrong-credential failures stay deliberately
// vague; the duplicate-email case is the one intentional disclosure.
const (
	msgEmailRequired    = "Email is required"
	msgEmailInvalid     = "Enter a valid email address"
	msgPasswordRequired = "Password is required"
	msgPasswordTooShort = "Password must be at least 8 characters"
	msgPasswordMismatch = "Passwords do not match"
	msgEmailTaken       = "This email is already registered. Please try logging in."
	msgBadCredentials   = "Invalid email or password"
	msgTryLater         = "Something went wrong. Please try again later."
)

// ActionResult is the per-request envelope returned by the registration
// and login entry points. Expected failures live here as data; only
// unexpected faults become the general error, and never with provider or
// storage text in it.
type ActionResult struct {
	Success      bool                `json:"success"`
	SubjectID    string              `json:"subjectId,omitempty"`
	Errors       map[string][]string `json:"errors,omitempty"`
	GeneralError string              `json:"generalError,omitempty"`

	// Echoed non-sensitive inputs, cleared on success.
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func fieldError(field, msg string) map[string][]string {
	return map[string][]string{field: {msg}}
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validateRegistration(email, password, confirm string) map[string][]string {
	errs := map[string][]string{}
	switch {
	case strings.TrimSpace(email) == "":
		errs["email"] = append(errs["email"], msgEmailRequired)
	case !validEmail(email):
		errs["email"] = append(errs["email"], msgEmailInvalid)
	}
	switch {
	case password == "":
		errs["password"] = append(errs["password"], msgPasswordRequired)
	case len(password) < 8:
		errs["password"] = append(errs["password"], msgPasswordTooShort)
	}
	if confirm != password {
		errs["confirmPassword"] = append(errs["confirmPassword"], msgPasswordMismatch)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateLogin(email, password string) map[string][]string {
	errs := map[string][]string{}
	if strings.TrimSpace(email) == "" {
		errs["email"] = append(errs["email"], msgEmailRequired)
	}
	if password == "" {
		errs["password"] = append(errs["password"], msgPasswordRequired)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
