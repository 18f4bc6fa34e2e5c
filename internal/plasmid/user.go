package plasmid

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// RawUser is a lab member as delivered by a source.
type RawUser struct {
	ID        string `json:"id" yaml:"id"`
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	FullName  string `json:"full_name,omitempty" yaml:"full_name,omitempty"`
}

// Validate checks the fields a User cannot be built without.
func (r RawUser) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
	)
}

// User is a lab member that can own plasmids. Users are passed by value and
// never modified after NewUser.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

// NewUser builds a User, deriving the display name from first and last name
// when the source did not supply one.
func NewUser(raw RawUser) (User, error) {
	if err := raw.Validate(); err != nil {
		return User{}, fmt.Errorf("plasmid: user: %w", err)
	}
	full := strings.TrimSpace(raw.FullName)
	if full == "" {
		full = strings.TrimSpace(strings.TrimSpace(raw.FirstName) + " " + strings.TrimSpace(raw.LastName))
	}
	return User{
		ID:        raw.ID,
		FirstName: raw.FirstName,
		LastName:  raw.LastName,
		FullName:  full,
	}, nil
}

// BuildUsers converts every raw user, failing on the first invalid one.
func BuildUsers(raws []RawUser) ([]User, error) {
	out := make([]User, 0, len(raws))
	for _, raw := range raws {
		u, err := NewUser(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
