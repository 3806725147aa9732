package models

// Session - the team context a connection handle occupies after join_team
type Session struct {
	ConnID   string
	TeamID   string
	UserID   string
	UserName string
}
