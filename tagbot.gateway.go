package tagbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/itsatony/go-cuserr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Gateway routes and parameters
const (
	RouteHealth         = "/healthz"
	RouteMetrics        = "/metrics"
	RouteGuilds         = "/v1/guilds/{guildID}"
	ParamGuildID        = "guildID"
	ParamUserID         = "userID"
	ParamTagName        = "name"
	GatewayMaxBodyBytes = 1 << 20
	HealthBody          = "ok"
)

// Gateway error messages
const (
	ErrMsgNoReplyCollector = "no reply collector in context"
	ErrMsgBadRequestBody   = "request body is not valid JSON"
	ErrMsgMissingAuthor    = "message author id is required"
)

// GatewayConfig configures NewGatewayHandler.
type GatewayConfig struct {
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer

	// CORSOrigins enables CORS for the read-only tag routes when non-empty.
	CORSOrigins []string

	Logger *zap.Logger
}

// NewGatewayHandler exposes the bot over HTTP for a platform bridge process.
// The bridge pushes guild and member state into roster and posts inbound
// messages; the response to a message is the JSON list of replies the bot
// would send. bot must be built with a GatewaySender.
func NewGatewayHandler(bot *Bot, roster *Roster, cfg GatewayConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &gateway{bot: bot, roster: roster, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(g.logRequests)

	r.Get(RouteHealth, g.handleHealth)
	if cfg.Gatherer != nil {
		r.Handle(RouteMetrics, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route(RouteGuilds, func(r chi.Router) {
		r.Put("/", g.handlePutGuild)
		r.Put("/members/{userID}", g.handlePutMember)
		r.Delete("/members/{userID}", g.handleDeleteMember)
		r.Post("/messages", g.handlePostMessage)

		r.Group(func(r chi.Router) {
			if len(cfg.CORSOrigins) > 0 {
				r.Use(cors.Handler(cors.Options{
					AllowedOrigins: cfg.CORSOrigins,
					AllowedMethods: []string{http.MethodGet, http.MethodOptions},
				}))
			}
			r.Get("/tags", g.handleListTags)
			r.Get("/tags/{name}", g.handleGetTag)
		})
	})

	return r
}

type gateway struct {
	bot    *Bot
	roster *Roster
	logger *zap.Logger
}

type guildRequest struct {
	Name        string `json:"name"`
	Invite      string `json:"invite,omitempty"`
	MemberCount int    `json:"member_count,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (g *gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(HealthBody))
}

func (g *gateway) handlePutGuild(w http.ResponseWriter, r *http.Request) {
	var req guildRequest
	if !g.decode(w, r, &req) {
		return
	}
	g.roster.UpsertGuild(Guild{
		ID:          chi.URLParam(r, ParamGuildID),
		Name:        req.Name,
		Invite:      req.Invite,
		MemberCount: req.MemberCount,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (g *gateway) handlePutMember(w http.ResponseWriter, r *http.Request) {
	var member Member
	if !g.decode(w, r, &member) {
		return
	}
	member.ID = chi.URLParam(r, ParamUserID)
	g.roster.UpsertMember(chi.URLParam(r, ParamGuildID), member)
	w.WriteHeader(http.StatusNoContent)
}

func (g *gateway) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	g.roster.RemoveMember(chi.URLParam(r, ParamGuildID), chi.URLParam(r, ParamUserID))
	w.WriteHeader(http.StatusNoContent)
}

func (g *gateway) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if !g.decode(w, r, &msg) {
		return
	}
	msg.GuildID = chi.URLParam(r, ParamGuildID)
	if msg.Author.ID == "" {
		g.badRequest(w, r, ErrMsgMissingAuthor)
		return
	}

	ctx, replies := withReplyCollector(r.Context())
	if err := g.bot.HandleMessage(ctx, &msg); err != nil {
		g.storageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replies.list())
}

func (g *gateway) handleListTags(w http.ResponseWriter, r *http.Request) {
	names, err := g.bot.Service().List(r.Context(), chi.URLParam(r, ParamGuildID))
	if err != nil {
		g.storageError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (g *gateway) handleGetTag(w http.ResponseWriter, r *http.Request) {
	rec, err := g.bot.Service().FindByName(r.Context(), chi.URLParam(r, ParamGuildID), chi.URLParam(r, ParamTagName))
	if errors.Is(err, ErrTagNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: ErrMsgTagNotFound})
		return
	}
	if err != nil {
		g.storageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (g *gateway) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, GatewayMaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		g.badRequest(w, r, ErrMsgBadRequestBody)
		return false
	}
	return true
}

func (g *gateway) badRequest(w http.ResponseWriter, r *http.Request, reason string) {
	g.logger.Debug(LogMsgGatewayBadRequest, zap.String(LogFieldPath, r.URL.Path), zap.String(LogFieldReason, reason))
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: reason})
}

func (g *gateway) storageError(w http.ResponseWriter, r *http.Request, err error) {
	g.logger.Error(LogMsgGatewayStorageError, zap.String(LogFieldPath, r.URL.Path), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

func (g *gateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		g.logger.Debug(LogMsgHTTPRequest,
			zap.String(LogFieldMethod, r.Method),
			zap.String(LogFieldPath, r.URL.Path),
			zap.Int(LogFieldStatus, ww.Status()),
			zap.Duration(LogFieldDuration, time.Since(start)),
			zap.String(LogFieldRequestID, middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GatewaySender is the Sender for bots served through NewGatewayHandler: it
// collects replies into the in-flight request instead of transmitting them.
type GatewaySender struct{}

// NewGatewaySender creates a GatewaySender.
func NewGatewaySender() *GatewaySender {
	return &GatewaySender{}
}

// Send appends msg to the request's reply list.
func (*GatewaySender) Send(ctx context.Context, _ *Message, msg *RenderableMessage) error {
	c, ok := ctx.Value(replyCollectorKey{}).(*replyCollector)
	if !ok {
		return cuserr.NewInternalError(ErrCodeTag, nil).WithMetadata(MetaKeyReason, ErrMsgNoReplyCollector)
	}
	c.add(msg)
	return nil
}

type replyCollectorKey struct{}

type replyCollector struct {
	mu      sync.Mutex
	replies []*RenderableMessage
}

func withReplyCollector(ctx context.Context) (context.Context, *replyCollector) {
	c := &replyCollector{replies: []*RenderableMessage{}}
	return context.WithValue(ctx, replyCollectorKey{}, c), c
}

func (c *replyCollector) add(msg *RenderableMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, msg)
}

func (c *replyCollector) list() []*RenderableMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*RenderableMessage{}, c.replies...)
}
