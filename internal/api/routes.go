package api

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"post-or-nah/backend/internal/analyzer"
	"post-or-nah/backend/internal/billing"
)

const (
	// DefaultMaxBodyBytes caps analyze uploads.
	DefaultMaxBodyBytes int64 = 15 << 20
	maxWebhookBytes     int64 = 64 << 10

	headerUserID    = "X-User-ID"
	headerRequestID = "X-Request-ID"
	recentUsage     = 10
)

// Client request ids are echoed into usage rows; anything else gets a
// server-generated id.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// Config defines server dependencies. Analyzer, Meter, Webhooks and Checkout
// may be nil; the routes that need them answer 503.
type Config struct {
	Analyzer       *analyzer.Analyzer
	Meter          *billing.Meter
	Webhooks       *billing.Webhooks
	Checkout       *billing.Checkout
	AllowedOrigins []string
	AdminToken     string
	RatePerMinute  int
	RateBurst      int
	MaxBodyBytes   int64
}

// Server wires HTTP handlers with the review pipeline and metering.
type Server struct {
	analyzer       *analyzer.Analyzer
	meter          *billing.Meter
	webhooks       *billing.Webhooks
	checkout       *billing.Checkout
	allowedOrigins []string
	adminToken     string
	limiter        *userLimiter
	feed           *VerdictNotifier
	maxBodyBytes   int64
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Webhooks != nil && cfg.Meter == nil {
		return nil, errors.New("webhooks require a meter")
	}
	if cfg.Checkout != nil && cfg.Meter == nil {
		return nil, errors.New("checkout requires a meter")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Analyzer == nil {
		logrus.Warn("analyzer not initialized; /api/analyze will answer 503")
	}
	if cfg.Meter == nil {
		logrus.Info("metering disabled - no meter configured")
	}
	return &Server{
		analyzer:       cfg.Analyzer,
		meter:          cfg.Meter,
		webhooks:       cfg.Webhooks,
		checkout:       cfg.Checkout,
		allowedOrigins: cfg.AllowedOrigins,
		adminToken:     strings.TrimSpace(cfg.AdminToken),
		limiter:        newUserLimiter(cfg.RatePerMinute, cfg.RateBurst),
		feed:           NewVerdictNotifier(),
		maxBodyBytes:   cfg.MaxBodyBytes,
	}, nil
}

// Feed exposes the live verdict notifier.
func (s *Server) Feed() *VerdictNotifier {
	return s.feed
}

// Close stops the verdict feed and disconnects its subscribers.
func (s *Server) Close() {
	s.feed.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", headerUserID, headerRequestID}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/vibes", s.handleVibes)
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/usage", s.handleUsage)
		api.POST("/credits", s.handleGrant)
		api.POST("/billing/checkout", s.handleCheckout)
		api.POST("/billing/webhook", s.handleWebhook)
		api.GET("/feed", s.handleFeed)
	}

	return r, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok", "model": "", "model_enabled": false}
	if s.analyzer != nil {
		resp["model"] = s.analyzer.ModelName()
		resp["model_enabled"] = s.analyzer.ModelEnabled()
	}
	resp["billing_enabled"] = s.meter != nil && s.meter.Enabled()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVibes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": newVibeDTOs()})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	if s.analyzer == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("photo reviews are not available"))
		return
	}
	user := callerID(c)
	if !s.limiter.Allow(user) {
		s.renderError(c, http.StatusTooManyRequests, errors.New("too many reviews, slow down"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.renderError(c, http.StatusRequestEntityTooLarge, errors.New("image is too large"))
			return
		}
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ImageBase64) == "" {
		s.renderError(c, http.StatusBadRequest, analyzer.ErrMissingImage)
		return
	}

	ctx := c.Request.Context()
	if s.meter != nil {
		if _, err := s.meter.Authorize(ctx, user); err != nil {
			if errors.Is(err, billing.ErrQuotaExceeded) {
				s.renderError(c, http.StatusPaymentRequired, err)
				return
			}
			s.renderError(c, http.StatusInternalServerError, err)
			return
		}
	}

	res, err := s.analyzer.Analyze(ctx, analyzer.Input{
		RequestID:   clientRequestID(c),
		ImageBase64: req.ImageBase64,
		MIMEType:    req.MIMEType,
		Category:    req.Category,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, analyzer.ErrMissingImage) || errors.Is(err, analyzer.ErrInvalidImage) {
			status = http.StatusBadRequest
		}
		s.renderError(c, status, err)
		return
	}

	resp := newAnalyzeResponse(res)
	if s.meter != nil {
		usage, err := s.meter.Charge(ctx, user, res)
		if err != nil {
			logrus.WithError(err).WithField("request_id", res.RequestID).Warn("meter review")
		} else {
			resp.Usage = &usage
		}
	}
	s.feed.Broadcast(newVerdictEvent(res))
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUsage(c *gin.Context) {
	if s.meter == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("metering is not configured"))
		return
	}
	ctx := c.Request.Context()
	user := callerID(c)
	usage, err := s.meter.Usage(ctx, user)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	rows, total, err := s.meter.History(ctx, user, recentUsage)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, UsageResponse{Usage: usage, Total: total, Recent: toUsageEventDTOs(rows)})
}

func (s *Server) handleGrant(c *gin.Context) {
	if s.meter == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("metering is not configured"))
		return
	}
	if !s.isAdmin(c) {
		s.renderError(c, http.StatusUnauthorized, errors.New("admin token required"))
		return
	}
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if req.Credits <= 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("credits must be positive"))
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "admin grant"
	}
	usage, err := s.meter.Grant(c.Request.Context(), req.UserID, req.Credits, reason)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, billing.ErrUnknownAccount) {
			status = http.StatusBadRequest
		}
		s.renderError(c, status, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (s *Server) handleCheckout(c *gin.Context) {
	if s.checkout == nil {
		s.renderError(c, http.StatusServiceUnavailable, billing.ErrCheckoutNotConfigured)
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	sess, err := s.checkout.Start(c.Request.Context(), callerID(c), req.PriceID)
	switch {
	case errors.Is(err, billing.ErrUnknownPack), errors.Is(err, billing.ErrUnknownAccount):
		s.renderError(c, http.StatusBadRequest, err)
	case err != nil:
		logrus.WithError(err).WithField("price_id", req.PriceID).Error("start checkout")
		s.renderError(c, http.StatusBadGateway, errors.New("payment provider unavailable"))
	default:
		c.JSON(http.StatusOK, sess)
	}
}

func (s *Server) handleWebhook(c *gin.Context) {
	if s.webhooks == nil {
		s.renderError(c, http.StatusServiceUnavailable, billing.ErrWebhookNotConfigured)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		s.renderError(c, http.StatusRequestEntityTooLarge, err)
		return
	}
	out, err := s.webhooks.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, billing.ErrWebhookNotConfigured):
		s.renderError(c, http.StatusServiceUnavailable, err)
	case errors.Is(err, billing.ErrInvalidSignature):
		logrus.WithError(err).Warn("rejected webhook")
		s.renderError(c, http.StatusBadRequest, billing.ErrInvalidSignature)
	case err != nil:
		logrus.WithError(err).WithField("event_id", out.EventID).Error("settle webhook")
		s.renderError(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) handleFeed(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.feed.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("verdict feed connected")
	defer s.feed.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("verdict feed closed")
			} else {
				logrus.WithError(err).Warn("verdict feed unexpected close")
			}
			break
		}
	}
}

func (s *Server) isAdmin(c *gin.Context) bool {
	if s.adminToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.adminToken)) == 1
}

// callerID identifies the caller for metering and rate limits. Signed-in
// users arrive with X-User-ID set by the auth proxy.
func callerID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(headerUserID)); id != "" {
		return id
	}
	return "anonymous:" + c.ClientIP()
}

// clientRequestID returns the caller's X-Request-ID when it is well formed.
// Blank means the analyzer assigns one.
func clientRequestID(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(headerRequestID))
	if !requestIDPattern.MatchString(id) {
		return ""
	}
	return id
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
