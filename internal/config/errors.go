package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Auth errors
	ErrCreateProviderFmt      = "Failed to create provider: %v"
	ErrAuthHeaderRequired     = "Authorization header required"
	ErrInvalidSignatureFormat = "Invalid signature format"
	ErrInvalidSignature       = "Invalid signature"
	ErrInternalServerError    = "Internal server error"
	ErrUnauthorized           = "Unauthorized"
	ErrForbidden              = "Forbidden"

	// Config errors
	ErrUnknownStorageBackend = "unknown storage backend"
	ErrUnknownCompression    = "unknown compression"
	ErrUnknownAuthType       = "unknown authentication type"
	ErrInvalidMaxImageBytes  = "max_image_bytes must be positive"

	// Editor errors
	ErrDraftNotFound  = "Draft not found"
	ErrPostNotFound   = "Post not found"
	ErrFileNotFound   = "File not found"
	ErrImageTooLarge  = "Featured image is too large"
	ErrInvalidRequest = "Invalid request"

	// Challenge errors
	ErrRefreshChallengeFmt = "Failed to refresh challenge"
)
