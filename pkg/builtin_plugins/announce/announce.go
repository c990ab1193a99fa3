package announce

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/schema"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/plugin_manager"
)

var decoder = schema.NewDecoder()

var ErrMissingField = errors.New("channel and message are required")

// announcement is the form posted to /plugin/announce.
type announcement struct {
	Channel string `schema:"channel"`
	Message string `schema:"message"`
	Notice  bool   `schema:"notice"`
	Action  bool   `schema:"action"`
}

func parseAnnouncement(r *http.Request) (*announcement, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}

	decoder.IgnoreUnknownKeys(true)
	a := &announcement{}
	if err := decoder.Decode(a, r.PostForm); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Channel) == "" || strings.TrimSpace(a.Message) == "" {
		return nil, ErrMissingField
	}
	return a, nil
}

func announce(helper plugin_manager.PluginHelper, a *announcement) error {
	for _, dest := range strings.Split(a.Channel, ",") {
		dest = strings.TrimSpace(dest)
		if dest == "" {
			continue
		}

		var err error
		switch {
		case a.Action:
			err = helper.ActionTo(dest, a.Message)
		case a.Notice:
			err = helper.NoticeTo(dest, a.Message)
		default:
			err = helper.SayTo(dest, a.Message)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func announceWebhook(ctx context.Context, whChan <-chan *plugin_manager.WebhookMsg) {
	for {
		select {
		case msg := <-whChan:
			a, err := parseAnnouncement(msg.Request)
			if err != nil {
				zap.L().Info("invalid announcement", zap.Error(err))
				http.Error(msg.ResponseWriter, err.Error(), http.StatusBadRequest)
				msg.Done <- true
				continue
			}

			if err := announce(msg.Helper, a); err != nil {
				zap.L().Error("error sending announcement", zap.Error(err))
				http.Error(msg.ResponseWriter, "unable to send announcement", http.StatusInternalServerError)
				msg.Done <- true
				continue
			}

			msg.ResponseWriter.WriteHeader(http.StatusNoContent)
			msg.Done <- true

		case <-ctx.Done():
			zap.L().Info("Exiting announce webhook.")
			return
		}
	}
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"announce",
		plugin_manager.WithWebhooks(plugin_manager.MakeWebhook("announce", announceWebhook)),
	)
}
