package constant

// slog attribute keys
const (
	Error    = "error"
	ConnID   = "conn_id"
	TeamID   = "team_id"
	UserID   = "user_id"
	UserName = "user_name"
	Event    = "event"
	SID      = "sid"
)
