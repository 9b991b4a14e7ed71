package accounts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Ref points at an account either by id or by code. The zero Ref points at nothing.
type Ref struct {
	id   int64
	code string
	hint *Hint
}

// Hint supplies attributes for a code that is not yet in the chart.
type Hint struct {
	Name           string         `json:"name,omitempty"`
	Type           AccountType    `json:"type,omitempty"`
	Classification Classification `json:"classification,omitempty"`
}

// ByID references an existing account.
func ByID(id int64) Ref {
	return Ref{id: id}
}

// ByCode references an account by its tenant-unique code, creating it when absent.
func ByCode(code string) Ref {
	return Ref{code: strings.TrimSpace(code)}
}

// WithHint returns a copy carrying attributes for auto-creation.
func (r Ref) WithHint(h Hint) Ref {
	r.hint = &h
	return r
}

// ID returns the referenced id for ByID refs.
func (r Ref) ID() (int64, bool) {
	return r.id, r.id > 0
}

// Code returns the referenced code for ByCode refs.
func (r Ref) Code() (string, bool) {
	return r.code, r.id == 0 && r.code != ""
}

// Hint returns the auto-creation hint, if any.
func (r Ref) Hint() (Hint, bool) {
	if r.hint == nil {
		return Hint{}, false
	}
	return *r.hint, true
}

// IsZero reports whether the ref points at nothing.
func (r Ref) IsZero() bool {
	return r.id <= 0 && r.code == ""
}

// Same reports whether both refs name the same account without resolving them.
func (r Ref) Same(other Ref) bool {
	if r.IsZero() || other.IsZero() {
		return false
	}
	if r.id > 0 || other.id > 0 {
		return r.id == other.id
	}
	return r.code == other.code
}

func (r Ref) String() string {
	if r.id > 0 {
		return "id:" + strconv.FormatInt(r.id, 10)
	}
	if r.code != "" {
		return "code:" + r.code
	}
	return "<none>"
}

type refJSON struct {
	ID   int64  `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
	Hint *Hint  `json:"hint,omitempty"`
}

// MarshalJSON encodes the ref as {"id":..} or {"code":..}.
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(refJSON{ID: r.id, Code: r.code, Hint: r.hint})
}

// UnmarshalJSON accepts {"id":..}, {"code":..,"hint":{..}} but not both.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw refJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ID != 0 && raw.Code != "" {
		return fmt.Errorf("accounts: ref must carry either id or code, got both")
	}
	if raw.ID < 0 {
		return fmt.Errorf("accounts: ref id must be positive")
	}
	*r = Ref{id: raw.ID, code: strings.TrimSpace(raw.Code), hint: raw.Hint}
	return nil
}
