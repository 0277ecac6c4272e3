package constants

// Machine-readable codes returned in the "error" and "code" fields.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"

	CodeInvalidURL   = "INVALID_URL"
	CodeInvalidCode  = "INVALID_CODE"
	CodeCodeTaken    = "CODE_TAKEN"
	CodeLinkNotFound = "LINK_NOT_FOUND"

	CodeLinkCreated     = "LINK_CREATED"
	CodeLinkFound       = "LINK_FOUND"
	CodeLinkUpdated     = "LINK_UPDATED"
	CodeLinkDeleted     = "LINK_DELETED"
	CodeStatsFound      = "STATS_FOUND"
	CodeAnalyticsFound  = "ANALYTICS_FOUND"
	CodeLinksCounted    = "LINKS_COUNTED"
	CodeAccountDataGone = "ACCOUNT_DATA_DELETED"
)
