package location

import (
	"context"

	"github.com/rosenstahl/weather-risk-service/internal/domain"
)

// ReportedPosition adapts an already-completed browser geolocation attempt
// to the PositionProvider port. The browser runs the actual probes; the
// server-side chain still owns the fallback decisions, so the tier logic
// stays in one place and remains testable.
type ReportedPosition struct {
	pos *Position
	err error
}

// NewReportedFix wraps a successful browser fix.
func NewReportedFix(pos Position) ReportedPosition {
	return ReportedPosition{pos: &pos}
}

// NewReportedDenial represents a user permission denial.
func NewReportedDenial() ReportedPosition {
	return ReportedPosition{err: domain.ErrPermissionDenied}
}

// NewReportedFailure represents any non-permission positioning failure.
func NewReportedFailure() ReportedPosition {
	return ReportedPosition{err: domain.ErrPositionUnavailable}
}

// Position returns the reported outcome regardless of probe parameters; a
// report is a single completed attempt, not a live sensor.
func (r ReportedPosition) Position(_ context.Context, _ PositionRequest) (Position, error) {
	if r.err != nil {
		return Position{}, r.err
	}
	if r.pos == nil {
		return Position{}, domain.ErrPositionUnavailable
	}
	return *r.pos, nil
}
