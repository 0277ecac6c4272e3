package constants

// Human-readable messages returned in the "message" field.
const (
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An internal error occurred"
	MsgUnauthorized       = "Missing or invalid bearer token"
	MsgForbidden          = "You do not own this link"
	MsgLoginRequired      = "Sign in to manage links"
	MsgRateLimited        = "Too many requests, slow down"
	MsgStorageUnavailable = "Storage is temporarily unavailable, try again"

	MsgInvalidURL   = "Invalid URL"
	MsgInvalidCode  = "Custom code must be 3-64 letters, digits, '-' or '_' and not a reserved path"
	MsgCodeTaken    = "Custom code is already in use"
	MsgLinkNotFound = "Link not found or expired"
)
