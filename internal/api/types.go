// Package api provides the client and protocol types for talking to the
// readback analysis backend over HTTP.
package api

// AnalyzeRequest carries one practice transmission to the backend.
type AnalyzeRequest struct {
	SessionID string // opaque session identity, required
	Frequency string // already formatted to three decimals
	AudioPath string // local path of the captured WAV take
}

// AnalyzeResponse is the backend's judgment of a transmission. Every field is
// optional; absent fields must leave the corresponding screen state untouched.
type AnalyzeResponse struct {
	Feedback         *string `json:"feedback,omitempty"`
	ControllerText   *string `json:"controller_text,omitempty"`
	AudioURL         *string `json:"audio_url,omitempty"`
	SessionCompleted *bool   `json:"session_completed,omitempty"`
}

// Completed reports whether the backend explicitly marked the session done.
func (r AnalyzeResponse) Completed() bool {
	return r.SessionCompleted != nil && *r.SessionCompleted
}

// errorBody is the JSON shape of backend error responses.
type errorBody struct {
	Detail string `json:"detail"`
}

// StrPtr returns a pointer to a string value. Convenience for building responses.
func StrPtr(s string) *string { return &s }

// BoolPtr returns a pointer to a bool value.
func BoolPtr(b bool) *bool { return &b }
