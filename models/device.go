package models

// DeviceFingerprint describes the payer's device for risk scoring.
type DeviceFingerprint struct {
	DeviceID       string `json:"device_id"`
	SessionID      string `json:"session_id"`
	IPAddress      string `json:"ip_address"`
	UserAgent      string `json:"user_agent"`
	Language       string `json:"language"`
	ScreenWidth    int    `json:"screen_width"`
	ScreenHeight   int    `json:"screen_height"`
	ColorDepth     int    `json:"color_depth,omitempty"`
	TimezoneOffset int    `json:"timezone_offset"`
}
