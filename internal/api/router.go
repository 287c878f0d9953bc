package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/honeytrace/honeypot/internal/capture"
	"github.com/honeytrace/honeypot/internal/lifecycle"
	"github.com/honeytrace/honeypot/internal/model"
	"github.com/honeytrace/honeypot/internal/storage"
)

// Controller is the lifecycle surface the router drives.
type Controller interface {
	Start(ctx context.Context) (lifecycle.Result, error)
	Stop(ctx context.Context) lifecycle.Result
	Restart(ctx context.Context) (lifecycle.Result, error)
	Status() lifecycle.Status
	Health(ctx context.Context) lifecycle.Health
}

type RecordReader interface {
	GetRecord(ctx context.Context, id string) (model.AttackRecord, error)
}

type NotificationLister interface {
	ListByCategory(ctx context.Context, category model.NotificationCategory) ([]model.Notification, error)
}

type Option func(*routes)

type routes struct {
	records       RecordReader
	notifications NotificationLister
}

// WithRecords mounts GET /api/v1/records/:id.
func WithRecords(r RecordReader) Option {
	return func(o *routes) { o.records = r }
}

// WithNotifications mounts GET /api/v1/notifications.
func WithNotifications(n NotificationLister) Option {
	return func(o *routes) { o.notifications = n }
}

// NewRouter builds the control API. An empty token disables auth on every
// route except health, which is always open.
func NewRouter(token string, ctl Controller, logger *slog.Logger, opts ...Option) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	var extra routes
	for _, opt := range opts {
		opt(&extra)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLog(logger))

	v1 := r.Group("/api/v1")
	v1.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Health(c.Request.Context()))
	})

	authed := v1.Group("")
	if token != "" {
		authed.Use(requireBearer(token))
	}
	if extra.records != nil {
		registerRecordRoute(authed, extra.records)
	}
	if extra.notifications != nil {
		registerNotificationRoute(authed, extra.notifications)
	}

	hp := authed.Group("/honeypot")
	hp.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Status())
	})
	hp.POST("/start", func(c *gin.Context) {
		res, err := ctl.Start(c.Request.Context())
		if err != nil {
			writeStartError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
	hp.POST("/stop", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Stop(c.Request.Context()))
	})
	hp.POST("/restart", func(c *gin.Context) {
		res, err := ctl.Restart(c.Request.Context())
		if err != nil {
			writeStartError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "not found")
	})
	return r
}

func registerRecordRoute(g *gin.RouterGroup, records RecordReader) {
	g.GET("/records/:id", func(c *gin.Context) {
		rec, err := records.GetRecord(c.Request.Context(), c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "record not found")
			return
		}
		if err != nil {
			writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
			return
		}
		c.JSON(http.StatusOK, rec)
	})
}

func registerNotificationRoute(g *gin.RouterGroup, notes NotificationLister) {
	g.GET("/notifications", func(c *gin.Context) {
		category := model.NotificationCategory(strings.ToUpper(c.DefaultQuery("category", string(model.CategoryAttack))))
		switch category {
		case model.CategorySystem, model.CategorySecurity, model.CategoryAttack, model.CategoryPerformance:
		default:
			writeError(c, http.StatusBadRequest, "BAD_REQUEST", "unknown category")
			return
		}

		items, err := notes.ListByCategory(c.Request.Context(), category)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"total":  len(items),
			"data":   items,
		})
	})
}

func requireBearer(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !checkBearerToken(c.GetHeader("Authorization"), expected) {
			writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token")
			c.Abort()
			return
		}
		c.Next()
	}
}

func checkBearerToken(auth, expected string) bool {
	if expected == "" || auth == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	got := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

func writeStartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		writeError(c, http.StatusForbidden, "PERMISSION_DENIED", err.Error())
	case errors.Is(err, capture.ErrPortUnavailable):
		writeError(c, http.StatusConflict, "PORT_UNAVAILABLE", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"status": "error",
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func requestLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("control request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
