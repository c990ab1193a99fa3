package plugin_manager

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/metrics"
)

func (m *ManagerImpl) getWebhook(webhookName string) *registeredWebhook {
	if webhookName == "" {
		return nil
	}

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if wh, ok := m.webhooks[webhookName]; ok {
		return wh
	}

	return nil
}

// handlePluginWebhook is an http handler that dispatches custom webhooks to the appropriate plugin
func (m *ManagerImpl) handlePluginWebhook(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["webhook-name"]

	wh := m.getWebhook(name)
	if wh == nil {
		metrics.WebhookRequests.WithLabelValues(name, "unknown").Inc()
		http.NotFound(w, r)
		return
	}

	done := make(chan bool, 1)
	msg := &WebhookMsg{
		Helper:         m.newHelper(wh.PluginID, nil, nil),
		Request:        r,
		ResponseWriter: w,
		Done:           done,
	}

	timer := time.NewTimer(m.c.WebhookTimeout)
	defer timer.Stop()

	select {
	case wh.Webhook.Channel() <- msg:
	case <-timer.C:
		m.l.Warn("webhook not accepted in time", zap.String("webhook_name", name))
		metrics.WebhookRequests.WithLabelValues(name, "timeout").Inc()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	select {
	case <-done:
		m.l.Debug("webhook completed", zap.String("webhook_name", name))
		metrics.WebhookRequests.WithLabelValues(name, "done").Inc()
	case <-timer.C:
		m.l.Warn("webhook timed out", zap.String("webhook_name", name))
		metrics.WebhookRequests.WithLabelValues(name, "timeout").Inc()
	}
}
