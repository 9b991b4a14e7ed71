package periods

import "time"

// Period represents a fiscal period window of one tenant. Dates are UTC calendar days, both
// bounds inclusive.
type Period struct {
	ID        int64      `json:"id"`
	TenantID  int64      `json:"tenant_id"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	IsClosed  bool       `json:"is_closed"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  *int64     `json:"closed_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Covers reports whether date falls inside the period.
func (p Period) Covers(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// Overlaps reports whether [start, end] intersects the period.
func (p Period) Overlaps(start, end time.Time) bool {
	return !start.After(p.EndDate) && !end.Before(p.StartDate)
}

// CreateInput groups fields required to open a new period.
type CreateInput struct {
	TenantID  int64  `validate:"required"`
	Name      string `validate:"required,max=100"`
	StartDate time.Time
	EndDate   time.Time
	Actor     int64
}
