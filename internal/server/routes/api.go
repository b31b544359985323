package routes

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ineyio/sentimentgate"
	"github.com/ineyio/sentimentgate/internal/observability"
)

// APIRoutes registers the upload, inference and quota endpoints.
type APIRoutes struct {
	svc     *sentimentgate.Service
	limiter *AuthLimiter
	log     *slog.Logger
}

// NewAPIRoutes constructs API routes. limiter may be nil.
func NewAPIRoutes(svc *sentimentgate.Service, limiter *AuthLimiter, log *slog.Logger) *APIRoutes {
	if log == nil {
		log = slog.Default()
	}
	return &APIRoutes{svc: svc, limiter: limiter, log: log}
}

// RegisterRoutes registers API endpoints.
func (a *APIRoutes) RegisterRoutes(s *echo.Echo) {
	api := s.Group("/api", a.authenticate)

	api.POST("/upload-url", a.handleUploadURL)
	api.POST("/sentiment-inference", a.handleInference)
	api.GET("/quota", a.handleQuota)
}

const accountKey = "sentimentgate.account"

// authenticate resolves the bearer credential before any handler runs and
// throttles clients that keep failing.
func (a *APIRoutes) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()
		if a.limiter.Blocked(ip) {
			retry := int(math.Ceil(a.limiter.RetryAfter().Seconds()))
			c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
			return writeMessage(c, http.StatusUnauthorized, msgThrottled)
		}

		ctx := c.Request().Context()
		acct, err := a.svc.Gate().Resolve(ctx, c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			a.limiter.Fail(ip)
			return writeError(c, a.log, err)
		}

		c.SetRequest(c.Request().WithContext(observability.WithAccount(ctx, acct.ID)))
		c.Set(accountKey, acct)
		return next(c)
	}
}

type uploadURLRequest struct {
	FileType string `json:"fileType"`
}

type uploadURLResponse struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

func (a *APIRoutes) handleUploadURL(c echo.Context) error {
	var req uploadURLRequest
	if err := c.Bind(&req); err != nil {
		return writeMessage(c, http.StatusBadRequest, msgBadRequest)
	}

	acct := c.Get(accountKey).(sentimentgate.Account)
	target, err := a.svc.IssueFor(c.Request().Context(), acct, req.FileType)
	if err != nil {
		return writeError(c, a.log, err)
	}
	return c.JSON(http.StatusOK, uploadURLResponse{URL: target.URL, Key: target.Key})
}

type inferenceRequest struct {
	Key string `json:"key"`
}

func (a *APIRoutes) handleInference(c echo.Context) error {
	var req inferenceRequest
	if err := c.Bind(&req); err != nil {
		return writeMessage(c, http.StatusBadRequest, msgBadRequest)
	}
	if strings.TrimSpace(req.Key) == "" {
		return writeMessage(c, http.StatusBadRequest, msgMissingKey)
	}

	acct := c.Get(accountKey).(sentimentgate.Account)
	analysis, err := a.svc.AnalyzeFor(c.Request().Context(), acct, req.Key)
	if err != nil {
		return writeError(c, a.log, err)
	}
	return c.JSON(http.StatusOK, analysis)
}

func (a *APIRoutes) handleQuota(c echo.Context) error {
	acct := c.Get(accountKey).(sentimentgate.Account)
	usage, err := a.svc.UsageFor(c.Request().Context(), acct)
	if err != nil {
		return writeError(c, a.log, err)
	}
	return c.JSON(http.StatusOK, usage)
}
