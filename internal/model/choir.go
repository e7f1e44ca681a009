// Package model defines the data structures used throughout the application.
package model

import "time"

// DateTimeLayout is the wire format for timestamps in API resources.
const DateTimeLayout = "2006-01-02 15:04:05"

// DefaultRole is assigned to new choir members when none is given.
const DefaultRole = "member"

// Choir is a choir member account: profile data plus session state.
//
// ID is the internal primary key and never leaves the process; UUID is the
// public identifier. Token is nil while the member is logged out.
type Choir struct {
	ID               int64
	UUID             string
	Name             string
	Email            string
	Level            string
	Role             string
	VoiceDesignation *string
	Code             string
	Token            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LoggedIn reports whether the member currently holds a session token.
func (c Choir) LoggedIn() bool {
	return c.Token != nil && *c.Token != ""
}

// WithToken returns a copy of c holding token as its only live session.
// Any previous token is dropped.
func (c Choir) WithToken(token string, now time.Time) Choir {
	c.Token = &token
	c.UpdatedAt = now
	return c
}

// WithoutToken returns a copy of c with its session cleared.
func (c Choir) WithoutToken(now time.Time) Choir {
	c.Token = nil
	c.UpdatedAt = now
	return c
}

// Profile is the public view of a choir member. It has no
// internal ID and no token.
type Profile struct {
	UUID             string  `json:"uuid"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Level            string  `json:"level"`
	Role             string  `json:"role"`
	Code             string  `json:"code"`
	VoiceDesignation *string `json:"voice_designation"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// Profile converts c to its public representation.
func (c Choir) Profile() Profile {
	return Profile{
		UUID:             c.UUID,
		Name:             c.Name,
		Email:            c.Email,
		Level:            c.Level,
		Role:             c.Role,
		Code:             c.Code,
		VoiceDesignation: c.VoiceDesignation,
		CreatedAt:        formatTime(c.CreatedAt),
		UpdatedAt:        formatTime(c.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateTimeLayout)
}
