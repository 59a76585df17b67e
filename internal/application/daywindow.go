package application

import "time"

// DayWindowResolver computes the UTC instant range covering one calendar day.
//
// Day boundaries are timezone aware: each user carries an IANA timezone name,
// and the resolver falls back to a service-wide default location when the
// user's value is empty or unknown. Windows are half-open [start, nextDay),
// so adjacent days share a boundary instant and never overlap.
type DayWindowResolver struct {
	defaultLocation *time.Location
}

// NewDayWindowResolver builds a resolver with the given fallback location.
// A nil location falls back to UTC.
func NewDayWindowResolver(defaultLocation *time.Location) *DayWindowResolver {
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &DayWindowResolver{defaultLocation: defaultLocation}
}

// Resolve returns the UTC window for the calendar day containing date, as
// observed in the named timezone.
func (r *DayWindowResolver) Resolve(date time.Time, timezone string) (start, end time.Time) {
	loc := r.location(timezone)
	local := date.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	// AddDate follows DST transitions, so a 23h or 25h day still yields
	// exactly one window per calendar day.
	dayEnd := dayStart.AddDate(0, 0, 1)
	return dayStart.UTC(), dayEnd.UTC()
}

// ResolveCivil returns the UTC window for the written calendar date as
// observed in the named timezone. Unlike Resolve it never reinterprets an
// instant: the requested year, month and day mean that date in the user's
// zone regardless of where the request originated.
func (r *DayWindowResolver) ResolveCivil(year int, month time.Month, day int, timezone string) (start, end time.Time) {
	loc := r.location(timezone)
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	return dayStart.UTC(), dayEnd.UTC()
}

func (r *DayWindowResolver) location(timezone string) *time.Location {
	if timezone == "" {
		return r.defaultLocation
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return r.defaultLocation
	}
	return loc
}
