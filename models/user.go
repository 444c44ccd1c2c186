package models

// User is the employee record returned by the attendance API on login.
// Immutable for the lifetime of a session; replaced wholesale on re-authentication.
type User struct {
	KarNik    string `json:"kar_nik"`
	KarNama   string `json:"kar_nama"`
	KarKdUnit string `json:"kar_kd_unit"`
	NamaUnit  string `json:"nama_unit,omitempty"`
}

// BrowserInfo describes the device submitting the login, sent alongside the OTP.
type BrowserInfo struct {
	UserAgent  string `json:"userAgent"`
	Platform   string `json:"platform"`
	Resolution string `json:"resolution"`
	Language   string `json:"language"`
	DeviceID   string `json:"deviceId"`
}
