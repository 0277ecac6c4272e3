package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/config"
	"github.com/IgorGrieder/minimizurl/internal/constants"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	appvalidation "github.com/IgorGrieder/minimizurl/internal/infrastructure/validation"
	"github.com/IgorGrieder/minimizurl/internal/processing/links"
	"github.com/IgorGrieder/minimizurl/internal/transport/http/middleware"
	"github.com/IgorGrieder/minimizurl/pkg/httputils"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// LinkService is the engine surface the HTTP layer drives.
type LinkService interface {
	Codec() links.Codec
	CreateAuto(ctx context.Context, rawURL string, owner links.Owner) (string, error)
	CreateCustom(ctx context.Context, rawURL, customCode string, owner links.Owner) (string, error)
	Resolve(ctx context.Context, in links.ResolveInput) (string, error)
	GetStats(ctx context.Context, code string) (*links.Link, error)
	GetForOwner(ctx context.Context, code string, owner links.Owner) (*links.Link, error)
	UpdateURL(ctx context.Context, code, rawURL string, owner links.Owner) (*links.Link, error)
	Delete(ctx context.Context, code string, owner links.Owner) error
	GetAnalytics(ctx context.Context, code string, owner links.Owner) (*links.Analytics, error)
	CountForOwner(ctx context.Context, owner links.Owner) (uint64, error)
	DeleteOwnerData(ctx context.Context, owner links.Owner) (int64, error)
}

type LinksHandler struct {
	svc            LinkService
	baseURL        string
	redirectStatus int
}

func NewLinksHandler(cfg *config.Config, svc LinkService) *LinksHandler {
	status := cfg.Shortener.RedirectStatus
	if status != http.StatusMovedPermanently {
		status = http.StatusFound
	}
	return &LinksHandler{
		svc:            svc,
		baseURL:        strings.TrimRight(cfg.Shortener.BaseURL, "/"),
		redirectStatus: status,
	}
}

type createLinkRequest struct {
	URL        string `json:"url" validate:"required,notblank,weburl"`
	CustomCode string `json:"customCode,omitempty" validate:"omitempty,alias"`
}

type updateLinkRequest struct {
	URL string `json:"url" validate:"required,notblank,weburl"`
}

type createLinkResponse struct {
	Code     string `json:"code"`
	URL      string `json:"url"`
	ShortURL string `json:"shortUrl"`
}

type linkResponse struct {
	Code        string    `json:"code"`
	ShortURL    string    `json:"shortUrl"`
	OriginalURL string    `json:"originalUrl"`
	Custom      bool      `json:"custom"`
	Clicks      uint64    `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type countResponse struct {
	Count uint64 `json:"count"`
}

type deleteOwnerDataResponse struct {
	DeletedLinks int64 `json:"deletedLinks"`
}

// Create shortens a URL, under the caller's alias when customCode is set.
func (h *LinksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := httputils.DecodeJSON(w, r, &req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, validationError(err))
		return
	}

	owner := middleware.OwnerFromContext(r.Context())

	var (
		code string
		err  error
	)
	if req.CustomCode != "" {
		code, err = h.svc.CreateCustom(r.Context(), req.URL, req.CustomCode, owner)
	} else {
		code, err = h.svc.CreateAuto(r.Context(), req.URL, owner)
	}
	if err != nil {
		h.writeServiceError(w, r, "create link", err)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinkCreated, createLinkResponse{
		Code:     code,
		URL:      strings.TrimSpace(req.URL),
		ShortURL: h.shortURL(code),
	})
}

// Redirect resolves a short code and sends the client to its target.
func (h *LinksHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	target, err := h.svc.Resolve(r.Context(), links.ResolveInput{
		Code:      code,
		Referer:   r.Referer(),
		UserAgent: r.UserAgent(),
		Visitor:   middleware.OwnerFromContext(r.Context()),
	})
	if err != nil {
		h.writeServiceError(w, r, "resolve code", err)
		return
	}

	http.Redirect(w, r, redirectTarget(target), h.redirectStatus)
}

// Stats returns the public view of a link. No ownership is required.
func (h *LinksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.GetStats(r.Context(), r.PathValue("code"))
	if err != nil {
		h.writeServiceError(w, r, "get stats", err)
		return
	}
	httputils.WriteAPISuccess(w, r, constants.SuccessStatsFound, h.toResponse(link))
}

func (h *LinksHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.GetForOwner(r.Context(), r.PathValue("code"), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "get link", err)
		return
	}
	httputils.WriteAPISuccess(w, r, constants.SuccessLinkFound, h.toResponse(link))
}

func (h *LinksHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateLinkRequest
	if err := httputils.DecodeJSON(w, r, &req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, validationError(err))
		return
	}

	link, err := h.svc.UpdateURL(r.Context(), r.PathValue("code"), req.URL, middleware.OwnerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "update link", err)
		return
	}
	httputils.WriteAPISuccess(w, r, constants.SuccessLinkUpdated, h.toResponse(link))
}

func (h *LinksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("code"), middleware.OwnerFromContext(r.Context())); err != nil {
		h.writeServiceError(w, r, "delete link", err)
		return
	}
	httputils.WriteAPISuccess(w, r, constants.SuccessLinkDeleted, nil)
}

func (h *LinksHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.svc.GetAnalytics(r.Context(), r.PathValue("code"), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "get analytics", err)
		return
	}
	httputils.WriteAPISuccess(w, r, constants.SuccessAnalyticsFound, analytics)
}

func (h *LinksHandler) CountMine(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.CountForOwner(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "count links", err)
		return
	}
	httputils.WriteAPISuccess(w, r, constants.SuccessLinksCounted, countResponse{Count: count})
}

func (h *LinksHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.DeleteOwnerData(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "delete owner data", err)
		return
	}
	httputils.WriteAPISuccess(w, r, constants.SuccessAccountDataDeleted, deleteOwnerDataResponse{DeletedLinks: deleted})
}

func (h *LinksHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	apiErr := apiErrorFor(err, middleware.OwnerFromContext(r.Context()))
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error("failed to "+op, zap.Error(err), zap.String("code", r.PathValue("code")))
	}
	httputils.WriteAPIError(w, r, apiErr)
}

// apiErrorFor maps engine errors onto the response catalogue. A guest hitting
// an owner-only operation gets a sign-in hint instead of a bare 403.
func apiErrorFor(err error, caller links.Owner) constants.APIError {
	switch {
	case errors.Is(err, links.ErrNotFound):
		return constants.ErrLinkNotFound
	case errors.Is(err, links.ErrForbidden):
		if caller.IsGuest() {
			return constants.ErrLoginRequired
		}
		return constants.ErrForbidden
	case errors.Is(err, links.ErrConflict):
		return constants.ErrCodeTaken
	case errors.Is(err, links.ErrInvalidCode):
		return constants.ErrInvalidCode
	case errors.Is(err, links.ErrInvalidURL):
		return constants.ErrInvalidURL
	case errors.Is(err, links.ErrStorageUnavailable):
		return constants.ErrStorageUnavailable
	default:
		return constants.ErrInternalError
	}
}

func validationError(err error) constants.APIError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "url":
			return constants.ErrInvalidURL
		case "customCode":
			return constants.ErrInvalidCode
		}
	}
	return constants.ErrInvalidRequestBody.WithMessage(appvalidation.FirstError(err))
}

func (h *LinksHandler) toResponse(link *links.Link) linkResponse {
	code := link.Code(h.svc.Codec())
	return linkResponse{
		Code:        code,
		ShortURL:    h.shortURL(code),
		OriginalURL: link.OriginalURL,
		Custom:      link.CustomCode != "",
		Clicks:      link.Clicks,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	}
}

func (h *LinksHandler) shortURL(code string) string {
	return h.baseURL + "/" + code
}

// redirectTarget prefixes https:// to stored URLs saved without a scheme.
func redirectTarget(stored string) string {
	lower := strings.ToLower(stored)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return stored
	}
	return "https://" + stored
}
