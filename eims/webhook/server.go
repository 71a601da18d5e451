// Package webhook exposes the endpoints the registry calls back: bulk
// registration results and notification delivery reports.
package webhook

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/batch"
	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/alapierre/go-eims-client/eims/store"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "eims.webhook")

const (
	BulkCallbackPath         = "/eims/bulk-callback"
	NotificationCallbackPath = "/eims/notification/email-callback"
	HealthPath               = "/healthz"
)

// maxBody caps callback payloads; bulk batches stay well below it.
const maxBody = 8 << 20

type CallbackProcessor interface {
	ProcessCallback(ctx context.Context, raw []byte) (*batch.CallbackResult, error)
}

type Server struct {
	callbacks     CallbackProcessor
	notifications store.Notifications
	router        *gin.Engine
	now           func() time.Time
}

func NewServer(callbacks CallbackProcessor, notifications store.Notifications) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		callbacks:     callbacks,
		notifications: notifications,
		router:        router,
		now:           func() time.Time { return time.Now().UTC() },
	}

	router.GET(HealthPath, s.handleHealth)
	router.POST(BulkCallbackPath, s.handleBulkCallback)
	router.POST(NotificationCallbackPath, s.handleNotification)

	return s
}

// Handler returns the router, for http.Server or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("webhook server listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "webhook server")
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleBulkCallback(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid JSON"})
		return
	}

	res, err := s.callbacks.ProcessCallback(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, batch.ErrMalformedCallback) {
			logger.Warnf("rejected bulk callback: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid JSON"})
			return
		}
		logger.Errorf("bulk callback failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Bulk callback processed successfully",
		"count":     res.Count,
		"documents": res.Documents,
	})
}

func (s *Server) handleNotification(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	var report api.Notification
	if err := decodeReport(raw, &report); err != nil {
		logger.Warnf("rejected notification callback: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	entry := ToLogEntry(report, raw, s.now())
	if err := s.notifications.AppendNotification(c.Request.Context(), entry); err != nil {
		logger.Errorf("could not record notification for %s: %v", report.Irn, err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	logger.Debugf("notification %s for %s: %s", entry.Action, entry.Irn, entry.Status)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ToLogEntry maps a delivery report. Only "success" counts as delivered;
// reports without an email address are sms deliveries.
func ToLogEntry(r api.Notification, raw []byte, now time.Time) *model.NotificationLogEntry {
	status := model.Failed
	if strings.EqualFold(strings.TrimSpace(r.DeliveryStatus), "success") {
		status = model.Delivered
	}
	channel, recipient := "email", r.Email
	if r.Email == "" && r.Phone != "" {
		channel, recipient = "sms", r.Phone
	}
	eventAt, _ := api.ParseAckDate(r.Timestamp)
	return &model.NotificationLogEntry{
		ID:            model.NewID(),
		Irn:           r.Irn,
		InvoiceNumber: r.InvoiceNumber,
		Action:        strings.ToLower(strings.TrimSpace(r.Action)),
		Channel:       channel,
		Recipient:     recipient,
		Status:        status,
		EventAt:       eventAt,
		ReceivedAt:    now,
		RawPayload:    raw,
	}
}

func decodeReport(raw []byte, r *api.Notification) error {
	if err := binding.JSON.BindBody(raw, r); err != nil {
		return errors.Wrap(err, "invalid notification payload")
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("webhook request")
	}
}
