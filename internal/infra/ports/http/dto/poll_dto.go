package dto

import "encoding/json"

type OpenPollResponse struct {
	SID string `json:"sid"`
}

// PollFramesResponse - frames queued since the previous poll, oldest first
type PollFramesResponse []json.RawMessage

type ErrorResponse struct {
	Error string `json:"error"`
}
