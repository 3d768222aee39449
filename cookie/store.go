// Package cookie provides a scoped accessor for the session cookie,
// bound to a single request/response exchange.
package cookie

import (
	"errors"
	"net/http"
	"time"
)

// maxValueLen is the conventional per-cookie size ceiling. Values above it
// are silently truncated or dropped by browsers, so a write that large is
// a failure, not a success.
const maxValueLen = 4096

var (
	ErrResponseCommitted = errors.New("response already committed, cannot write cookie")
	ErrValueTooLarge     = errors.New("cookie value exceeds size limit")
)

// Options adjusts the mutable attributes of a cookie write. Security
// flags are not options: HttpOnly and SameSite=Strict are always forced,
// and Secure is forced outside dev mode.
type Options struct {
	MaxAge int
	Path   string
}

// Store reads and writes cookies against one request/response pair.
type Store struct {
	w http.ResponseWriter
	r *http.Request

	// committed reports whether the response header has been flushed.
	// Writes after that point never reach the client.
	committed func() bool

	devMode bool
}

// NewStore creates a Store bound to the given exchange. committed may be
// nil when the caller has no flush signal.
func NewStore(w http.ResponseWriter, r *http.Request, committed func() bool, devMode bool) *Store {
	return &Store{w: w, r: r, committed: committed, devMode: devMode}
}

// Set writes the named cookie with the required security flags. MaxAge and
// Path may be adjusted through opts; unsafe flag overrides do not exist in
// the Options surface and are therefore structurally refused.
func (s *Store) Set(name, value string, opts Options) error {
	if s.committed != nil && s.committed() {
		return ErrResponseCommitted
	}
	if len(value) > maxValueLen {
		return ErrValueTooLarge
	}

	path := opts.Path
	if path == "" {
		path = "/"
	}

	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   !s.devMode,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Get returns the named cookie's value, or false when absent.
func (s *Store) Get(name string) (string, bool) {
	c, err := s.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Delete expires the named cookie. Idempotent: deleting an absent cookie
// emits a harmless expired duplicate.
func (s *Store) Delete(name string) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   !s.devMode,
		SameSite: http.SameSiteStrictMode,
	})
}
