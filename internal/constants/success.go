package constants

import "net/http"

// APISuccess is a predefined success response: code and HTTP status.
type APISuccess struct {
	Code   string
	Status int
}

var (
	SuccessLinkCreated = APISuccess{
		Code:   CodeLinkCreated,
		Status: http.StatusCreated,
	}
	SuccessLinkFound = APISuccess{
		Code:   CodeLinkFound,
		Status: http.StatusOK,
	}
	SuccessLinkUpdated = APISuccess{
		Code:   CodeLinkUpdated,
		Status: http.StatusOK,
	}
	SuccessLinkDeleted = APISuccess{
		Code:   CodeLinkDeleted,
		Status: http.StatusNoContent,
	}
	SuccessStatsFound = APISuccess{
		Code:   CodeStatsFound,
		Status: http.StatusOK,
	}
	SuccessAnalyticsFound = APISuccess{
		Code:   CodeAnalyticsFound,
		Status: http.StatusOK,
	}
	SuccessLinksCounted = APISuccess{
		Code:   CodeLinksCounted,
		Status: http.StatusOK,
	}
	SuccessAccountDataDeleted = APISuccess{
		Code:   CodeAccountDataGone,
		Status: http.StatusOK,
	}
)
