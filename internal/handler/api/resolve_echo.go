package api

import (
	"strings"
	"time"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	"FinResolve/internal/usecase"
	xhttp "FinResolve/pkg/http"
	xlogger "FinResolve/pkg/logger"
	"FinResolve/pkg/util"

	"github.com/labstack/echo/v4"
)

// streamStatus reports whether the live ticker feed is attached.
type streamStatus interface {
	IsConnected() bool
}

// ResolveEchoHandler serves asset resolution over HTTP.
type ResolveEchoHandler struct {
	logger   *xlogger.Logger
	resolver *usecase.Resolver
	store    drepo.EventStore
	stream   streamStatus
}

// NewResolveEchoHandler builds the handler. store may be nil when events are not persisted.
func NewResolveEchoHandler(logger *xlogger.Logger, resolver *usecase.Resolver, store drepo.EventStore) *ResolveEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ResolveEchoHandler{logger: logger, resolver: resolver, store: store}
}

// SetStream attaches the live feed so /healthz can report it.
func (h *ResolveEchoHandler) SetStream(s streamStatus) { h.stream = s }

func (h *ResolveEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/resolve", h.Resolve)
	g.GET("/resolve", h.ResolveQuery)
	g.GET("/known-assets", h.KnownAssets)
	g.GET("/breaker", h.Breaker)
	g.GET("/resolutions", h.Resolutions)
	e.GET("/healthz", h.Health)
}

// AssetsResponse is returned when the caller opts out of disambiguation.
type AssetsResponse struct {
	Assets []models.MergedAsset `json:"assets"`
}

func (h *ResolveEchoHandler) Resolve(c echo.Context) error {
	req := &models.ResolveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if len(req.Terms) == 0 && strings.TrimSpace(req.Query) == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("terms or query is required"))
	}

	ctx := c.Request().Context()
	if req.Disambiguate != nil && !*req.Disambiguate {
		terms := req.Terms
		if len(terms) == 0 {
			terms = usecase.PreprocessQuery(req.Query)
		}
		return xhttp.SuccessResponse(c, AssetsResponse{Assets: h.resolver.ResolveAssets(ctx, terms, req.Query)})
	}
	return xhttp.SuccessResponse(c, h.resolver.Resolve(ctx, req.Terms, req.Query))
}

// ResolveQuery is the GET form: ?q=free text&terms=AAPL,BTC.
func (h *ResolveEchoHandler) ResolveQuery(c echo.Context) error {
	req := &models.ResolveQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var terms []string
	for _, t := range strings.Split(req.Terms, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 && strings.TrimSpace(req.Q) == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("q or terms is required"))
	}
	return xhttp.SuccessResponse(c, h.resolver.Resolve(c.Request().Context(), terms, req.Q))
}

func (h *ResolveEchoHandler) KnownAssets(c echo.Context) error {
	req := &models.KnownAssetsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	known := h.resolver.Orchestrator().Known()
	rows := known.Lookup(req.Q, req.Threshold, req.Limit)
	if rows == nil {
		rows = []models.Candidate{}
	}
	return xhttp.ListResponse(c, rows, int64(known.Len()))
}

func (h *ResolveEchoHandler) Breaker(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.resolver.Orchestrator().Breaker().State())
}

func (h *ResolveEchoHandler) Resolutions(c echo.Context) error {
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("resolution history is not enabled"))
	}
	req := &models.ResolutionsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since := util.ParseTimeDefault(req.Since, time.Now().Add(-time.Duration(req.Hours)*time.Hour))
	rows, err := h.store.Query(c.Request().Context(), req.Symbol, since, req.Limit)
	if err != nil {
		h.logger.Error("resolutions query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("resolution history unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// HealthResponse summarises the moving parts of the service.
type HealthResponse struct {
	Status          string `json:"status"`
	BreakerOpen     bool   `json:"breakerOpen"`
	KnownAssets     int    `json:"knownAssets"`
	StreamConnected *bool  `json:"streamConnected,omitempty"`
	EventStore      string `json:"eventStore,omitempty"`
}

// Health reports "degraded" while the merge breaker is open or the event store is unreachable.
func (h *ResolveEchoHandler) Health(c echo.Context) error {
	orch := h.resolver.Orchestrator()
	res := HealthResponse{
		Status:      "ok",
		BreakerOpen: orch.Breaker().State().IsOpen,
		KnownAssets: orch.Known().Len(),
	}
	if res.BreakerOpen {
		res.Status = "degraded"
	}
	if h.stream != nil {
		connected := h.stream.IsConnected()
		res.StreamConnected = &connected
	}
	if h.store != nil {
		res.EventStore = "ok"
		if err := h.store.Health(c.Request().Context()); err != nil {
			h.logger.Warn("event store unhealthy", xlogger.Error(err))
			res.EventStore = "unreachable"
			res.Status = "degraded"
		}
	}
	return xhttp.SuccessResponse(c, res)
}
