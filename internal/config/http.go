package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"
	HHxRedirect   = "HX-Redirect"
	HHxRequest    = "HX-Request"

	CTypeJSON = "application/json"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

const (
	CookieDraftID   = "draft-id"
	CookieAuthToken = "auth_token"
)
