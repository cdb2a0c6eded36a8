package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure kinds shared across the acquisition pipeline. Callers dispatch with
// errors.Is / errors.As; user-facing layers map them to remediation hints via
// [UserMessage].
var (
	// ErrTimeout marks a network call that exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrUnexpectedResponseType marks a response whose content type could not
	// be parsed as the expected structured payload.
	ErrUnexpectedResponseType = errors.New("unexpected response type")

	// ErrLocationNotFound marks a free-text search with zero geocoding matches.
	ErrLocationNotFound = errors.New("location not found")

	// ErrPermissionDenied marks a device positioning attempt rejected by the
	// user. It is never retried through fallback tiers: no automatic strategy
	// can recover consent.
	ErrPermissionDenied = errors.New("position permission denied")

	// ErrPositionUnavailable marks an exhausted positioning fallback chain.
	ErrPositionUnavailable = errors.New("position unavailable")

	// ErrInsufficientData marks a provider sample missing fields that cannot
	// be defaulted, such as temperature.
	ErrInsufficientData = errors.New("insufficient sample data")
)

// HTTPError carries a non-success upstream status code.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d from %s", e.Status, e.URL)
}

// Transient reports whether the status is worth retrying. Upstream weather
// and geocoding providers surface short-lived gaps as 404 and maintenance
// windows as 503; everything else fails immediately.
func (e *HTTPError) Transient() bool {
	return e.Status == http.StatusNotFound || e.Status == http.StatusServiceUnavailable
}

// UserMessage maps a pipeline failure to a plain-language remediation hint
// suitable for direct display. Unknown errors get a generic retry hint.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Standortfreigabe wurde abgelehnt. Bitte geben Sie Ihren Ort manuell ein."
	case errors.Is(err, ErrPositionUnavailable):
		return "Ihr Standort konnte nicht ermittelt werden. Bitte geben Sie Ihren Ort manuell ein."
	case errors.Is(err, ErrLocationNotFound):
		return "Der gesuchte Ort wurde nicht gefunden. Bitte prüfen Sie die Schreibweise."
	case errors.Is(err, ErrTimeout):
		return "Die Wetterdaten konnten nicht rechtzeitig geladen werden. Bitte versuchen Sie es erneut."
	default:
		return "Die Wetterdaten sind derzeit nicht verfügbar. Bitte versuchen Sie es später erneut."
	}
}
