package server

const (
	msgInvalidBody          = "Invalid request body"
	msgInvalidPIN           = "Invalid PIN"
	msgTooManyAttempts      = "Too many attempts"
	msgPINNotConfigured     = "Admin PIN is not configured"
	msgGateRequired         = "PIN verification required."
	msgInvalidAdminLogin    = "Invalid admin username or password."
	msgInvalidPortalLogin   = "Invalid portal username or password."
	msgAdminNotConfigured   = "Admin login is not configured."
	msgMissingCredentials   = "Missing username or password"
	msgInternal             = "An internal error occurred."
	msgMissingSessionCookie = "Panel login succeeded but no session cookie was issued."
	msgPanelUnreachable     = "Could not connect to the panel."
	msgSettingNotFound      = "Setting not found"
	msgUnauthenticated      = "unauthenticated"
)
