package types

import "time"

const SessionCookieName = "dengue_session_token"

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// AuthSession is the mock session returned by GET /api/auth?action=session.
type AuthSession struct {
	User    User      `json:"user"`
	Expires time.Time `json:"expires"`
}
