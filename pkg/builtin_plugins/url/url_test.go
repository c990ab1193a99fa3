package url

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jirwin/quirc/pkg/quirctest"
)

type titleServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newTitleServer(t *testing.T) *titleServer {
	s := &titleServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><head><title>\n  Hello\n  World  </title></head><body>hi</body></html>")
	})
	mux.HandleFunc("/og", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><meta property="og:title" content="Open Graph"></head></html>`)
	})
	mux.HandleFunc("/long", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<title>%s</title>", strings.Repeat("a", 300))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "<title>not html</title>")
	})
	mux.HandleFunc("/skip", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<title>skipped</title>")
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func TestIsPrivate(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{ip: "127.0.0.1", want: true},
		{ip: "10.1.2.3", want: true},
		{ip: "192.168.0.10", want: true},
		{ip: "172.16.5.4", want: true},
		{ip: "169.254.169.254", want: true},
		{ip: "::1", want: true},
		{ip: "fd00::1", want: true},
		{ip: "0.0.0.0", want: true},
		{ip: "100.64.0.1", want: true},
		{ip: "100.127.255.254", want: true},
		{ip: "100.128.0.1", want: false},
		{ip: "::ffff:127.0.0.1", want: true},
		{ip: "::ffff:10.0.0.1", want: true},
		{ip: "::ffff:93.184.216.34", want: false},
		{ip: "93.184.216.34", want: false},
		{ip: "2606:2800:220:1:248:1893:25c8:1946", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			require.Equal(t, tt.want, isPrivate(net.ParseIP(tt.ip)))
		})
	}
}

func TestTitles(t *testing.T) {
	srv := newTitleServer(t)
	b := quirctest.New(t, quirctest.WithSection("url", "allow_private = true", "exclude = /skip$"))
	b.Register(Register())

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "link in message",
			text: "look at " + srv.URL + "/page.",
			want: []string{"PRIVMSG #channel :[ Hello World ] - 127.0.0.1"},
		},
		{
			name: "open graph title",
			text: srv.URL + "/og",
			want: []string{"PRIVMSG #channel :[ Open Graph ] - 127.0.0.1"},
		},
		{
			name: "long title",
			text: srv.URL + "/long",
			want: []string{"PRIVMSG #channel :[ " + strings.Repeat("a", maxTitleLength) + "… ] - 127.0.0.1"},
		},
		{name: "not html", text: srv.URL + "/plain", want: []string{}},
		{name: "missing page", text: srv.URL + "/missing", want: []string{}},
		{name: "excluded", text: srv.URL + "/skip", want: []string{}},
		{
			name: "title command",
			text: ".title " + srv.URL + "/og",
			want: []string{"PRIVMSG #channel :[ Open Graph ] - 127.0.0.1"},
		},
		{
			name: "title of last link",
			text: ".title",
			want: []string{"PRIVMSG #channel :[ skipped ] - 127.0.0.1"},
		},
		{
			name: "title command failure",
			text: ".title " + srv.URL + "/plain",
			want: []string{"PRIVMSG #channel :Alice: Sorry, I couldn't get a title for that link."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.ClearSent()
			b.Say("Alice", tt.text)
			require.Equal(t, tt.want, b.Sent())
		})
	}
}

func TestTitleCache(t *testing.T) {
	srv := newTitleServer(t)
	b := quirctest.New(t, quirctest.WithSection("url", "allow_private = true"))
	b.Register(Register())

	b.Say("Alice", srv.URL+"/page")
	b.Say("Bob", "again "+srv.URL+"/page")
	require.Equal(t, []string{
		"PRIVMSG #channel :[ Hello World ] - 127.0.0.1",
		"PRIVMSG #channel :[ Hello World ] - 127.0.0.1",
	}, b.Sent())
	require.Equal(t, int32(1), srv.hits.Load())
}

func TestPrivateAddressesAreBlocked(t *testing.T) {
	srv := newTitleServer(t)
	b := quirctest.New(t)
	b.Register(Register())

	b.Say("Alice", srv.URL+"/page")
	require.Empty(t, b.Sent())

	b.Say("Alice", ".title "+srv.URL+"/page")
	require.Equal(t, []string{"PRIVMSG #channel :Alice: Sorry, I couldn't get a title for that link."}, b.Sent())
	require.Equal(t, int32(0), srv.hits.Load())
}

func TestInvalidSettings(t *testing.T) {
	b := quirctest.New(t, quirctest.WithSection("url", "cache_size = lots"))
	require.Error(t, b.Plugins.Register(Register()))

	b = quirctest.New(t, quirctest.WithSection("url", "exclude = ("))
	require.Error(t, b.Plugins.Register(Register()))
}
