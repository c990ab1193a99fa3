package webhook_manager

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
)

const (
	SignatureHeader = "X-Quirc-Signature"
	signaturePrefix = "sha256="

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

type Config struct {
	ListenAddress string
	Secret        string
}

func NewConfig(settings *config.Settings) (Config, error) {
	webhook := settings.Webhook()

	c := Config{
		ListenAddress: webhook.ListenAddr,
		Secret:        webhook.Secret,
	}

	return c, nil
}

type Manager interface {
	Run(ctx context.Context)
	RegisterRoute(route string, f http.HandlerFunc, methods []string, validate bool)
	Handler() http.Handler
}

type ManagerImpl struct {
	l      *zap.Logger
	c      Config
	server *http.Server

	mtx    sync.RWMutex
	router *mux.Router
}

// Run serves HTTP until ctx is cancelled. Without a listen address it only waits for ctx.
func (m *ManagerImpl) Run(ctx context.Context) {
	if m.c.ListenAddress == "" {
		m.l.Info("webhook server disabled, no listen address configured")
		<-ctx.Done()
		return
	}

	go func() {
		m.l.Info("starting webhook server", zap.String("addr", m.c.ListenAddress))
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.l.Error("listen error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	m.l.Info("Shutting down webhook server")
	// shut down gracefully, but wait no longer than 5 seconds before halting
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = m.server.Shutdown(ctx)
	m.l.Info("Shut down webhook server")
}

// ServeHTTP routes a request. Routes may be added while serving.
func (m *ManagerImpl) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	m.router.ServeHTTP(rw, r)
}

func (m *ManagerImpl) Handler() http.Handler {
	return m
}

func (m *ManagerImpl) RegisterRoute(path string, f http.HandlerFunc, methods []string, validate bool) {
	handler := f
	if validate {
		handler = m.ValidateSignature(f)
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.router.HandleFunc(path, handler).Methods(methods...)
	m.l.Info("registering route", zap.String("path", path), zap.Strings("methods", methods))
}

var ErrInvalidSignature = errors.New("invalid request signature")

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature header value against body.
func VerifySignature(secret string, body []byte, signature string) error {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(signature), []byte(Sign(secret, body))) {
		return ErrInvalidSignature
	}
	return nil
}

// ValidateSignature rejects requests whose body is not signed with the configured secret. When no
// secret is configured every request is accepted.
func (m *ManagerImpl) ValidateSignature(f http.HandlerFunc) http.HandlerFunc {
	handler := func(rw http.ResponseWriter, r *http.Request) {
		if m.c.Secret == "" {
			f(rw, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			m.l.Error("error reading request body", zap.Error(err))
			rw.WriteHeader(http.StatusUnauthorized)
			return
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		if err := VerifySignature(m.c.Secret, body, r.Header.Get(SignatureHeader)); err != nil {
			m.l.Warn("rejecting webhook", zap.String("path", r.URL.Path), zap.Error(err))
			rw.WriteHeader(http.StatusUnauthorized)
			return
		}

		f(rw, r)
	}

	return handler
}

func healthz(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("ok\n"))
}

func New(c Config, l *zap.Logger) (*ManagerImpl, error) {
	router := mux.NewRouter()
	m := &ManagerImpl{
		l:      l.Named("webhook-manager"),
		c:      c,
		router: router,
	}
	m.server = &http.Server{
		Addr:              c.ListenAddress,
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/healthz", healthz).Methods("GET")

	if c.ListenAddress != "" && c.Secret == "" {
		m.l.Warn("webhook secret is not set, plugin webhooks accept unsigned requests")
	}

	return m, nil
}
