package irc_manager

import (
	"encoding/base64"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/trigger"
)

// DefaultCapabilities are requested whenever the server offers them.
var DefaultCapabilities = []string{
	"multi-prefix",
	"away-notify",
	"account-notify",
	"extended-join",
	"chghost",
	"message-tags",
	"server-time",
	"account-tag",
	"echo-message",
	"cap-notify",
}

const saslChunkSize = 400

type capabilities struct {
	sync.Mutex

	wanted      map[string]bool
	sasl        bool
	mechanism   string
	available   map[string]string
	enabled     map[string]bool
	pending     map[string]bool
	negotiating bool
	authing     bool
}

func newCapabilities(c Config) *capabilities {
	caps := &capabilities{
		wanted:    make(map[string]bool),
		sasl:      c.AuthMethod == config.AuthSASL,
		mechanism: strings.ToUpper(c.AuthTarget),
	}
	if caps.mechanism == "" {
		caps.mechanism = "PLAIN"
	}
	for _, name := range DefaultCapabilities {
		caps.wanted[name] = true
	}
	if caps.sasl {
		caps.wanted["sasl"] = true
	}
	caps.reset()
	return caps
}

func (c *capabilities) reset() {
	c.Lock()
	defer c.Unlock()

	c.available = make(map[string]string)
	c.enabled = make(map[string]bool)
	c.pending = make(map[string]bool)
	c.negotiating = false
	c.authing = false
}

func (c *capabilities) startNegotiation() {
	c.Lock()
	defer c.Unlock()

	c.negotiating = true
}

// RequestCapabilities adds capabilities to request on the next negotiation.
func (m *ManagerImpl) RequestCapabilities(caps ...string) {
	m.caps.Lock()
	defer m.caps.Unlock()

	for _, name := range caps {
		m.caps.wanted[strings.ToLower(name)] = true
	}
}

func (m *ManagerImpl) HasCapability(name string) bool {
	m.caps.Lock()
	defer m.caps.Unlock()

	return m.caps.enabled[strings.ToLower(name)]
}

// EnabledCapabilities lists the capabilities acknowledged by the server.
func (m *ManagerImpl) EnabledCapabilities() []string {
	m.caps.Lock()
	defer m.caps.Unlock()

	out := make([]string, 0, len(m.caps.enabled))
	for name := range m.caps.enabled {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func handleCap(m *ManagerImpl, pre *trigger.PreTrigger) {
	if len(pre.Args) < 3 {
		return
	}
	sub := strings.ToUpper(pre.Args[1])
	more := len(pre.Args) > 3 && pre.Args[2] == "*"
	list := strings.Fields(pre.Args[len(pre.Args)-1])

	switch sub {
	case "LS":
		m.caps.Lock()
		for _, item := range list {
			name, value, _ := strings.Cut(item, "=")
			m.caps.available[strings.ToLower(name)] = value
		}
		m.caps.Unlock()
		if !more {
			m.requestCaps()
		}

	case "NEW":
		m.caps.Lock()
		for _, item := range list {
			name, value, _ := strings.Cut(item, "=")
			m.caps.available[strings.ToLower(name)] = value
		}
		m.caps.Unlock()
		m.requestCaps()

	case "DEL":
		m.caps.Lock()
		for _, name := range list {
			name = strings.ToLower(name)
			delete(m.caps.available, name)
			delete(m.caps.enabled, name)
		}
		m.caps.Unlock()

	case "ACK":
		startSASL := false
		m.caps.Lock()
		for _, name := range list {
			name = strings.ToLower(name)
			if strings.HasPrefix(name, "-") {
				delete(m.caps.enabled, name[1:])
				delete(m.caps.pending, name[1:])
				continue
			}
			m.caps.enabled[name] = true
			delete(m.caps.pending, name)
			if name == "sasl" && m.caps.sasl && m.caps.negotiating {
				startSASL = true
				m.caps.authing = true
			}
		}
		mechanism := m.caps.mechanism
		m.caps.Unlock()

		m.l.Info("capabilities enabled", zap.Strings("caps", list))
		if startSASL {
			m.send("AUTHENTICATE", mechanism) //nolint:errcheck
			return
		}
		m.maybeEndCap()

	case "NAK":
		m.caps.Lock()
		for _, name := range list {
			delete(m.caps.pending, strings.ToLower(name))
		}
		m.caps.Unlock()
		m.l.Warn("capabilities refused", zap.Strings("caps", list))
		m.maybeEndCap()
	}
}

// requestCaps asks for every wanted capability the server offers and is not enabled yet.
func (m *ManagerImpl) requestCaps() {
	m.caps.Lock()
	req := []string{}
	for name := range m.caps.wanted {
		if _, ok := m.caps.available[name]; !ok || m.caps.enabled[name] {
			continue
		}
		if name == "sasl" {
			if mechs := m.caps.available[name]; mechs != "" && !containsFold(strings.Split(mechs, ","), m.caps.mechanism) {
				m.l.Error("server does not support the SASL mechanism", zap.String("mechanism", m.caps.mechanism), zap.String("available", mechs))
				continue
			}
		}
		req = append(req, name)
		m.caps.pending[name] = true
	}
	m.caps.Unlock()

	if len(req) == 0 {
		m.maybeEndCap()
		return
	}

	sort.Strings(req)
	m.Write("CAP", "REQ", strings.Join(req, " ")) //nolint:errcheck
}

// maybeEndCap ends negotiation once no request or authentication is outstanding.
func (m *ManagerImpl) maybeEndCap() {
	m.caps.Lock()
	end := m.caps.negotiating && len(m.caps.pending) == 0 && !m.caps.authing
	if end {
		m.caps.negotiating = false
	}
	m.caps.Unlock()

	if end {
		m.send("CAP", "END") //nolint:errcheck
	}
}

func handleAuthenticate(m *ManagerImpl, pre *trigger.PreTrigger) {
	if len(pre.Args) == 0 || pre.Args[0] != "+" {
		return
	}

	m.caps.Lock()
	mechanism := m.caps.mechanism
	m.caps.Unlock()

	payload := ""
	if mechanism == "PLAIN" {
		user := m.c.AuthUsername
		if user == "" {
			user = m.c.Nick
		}
		token := strings.Join([]string{user, user, m.c.AuthPassword}, "\x00")
		payload = base64.StdEncoding.EncodeToString([]byte(token))
	}

	for _, chunk := range saslChunks(payload) {
		if err := m.send("AUTHENTICATE", chunk); err != nil {
			return
		}
	}
}

// saslChunks splits an encoded SASL payload into AUTHENTICATE sized pieces. A payload whose last
// piece is exactly the chunk size is followed by "+".
func saslChunks(payload string) []string {
	if payload == "" {
		return []string{"+"}
	}

	out := []string{}
	for len(payload) > saslChunkSize {
		out = append(out, payload[:saslChunkSize])
		payload = payload[saslChunkSize:]
	}
	out = append(out, payload)
	if len(payload) == saslChunkSize {
		out = append(out, "+")
	}
	return out
}

func handleSASLResult(m *ManagerImpl, pre *trigger.PreTrigger) {
	switch pre.Event {
	case "900":
		if len(pre.Args) >= 3 {
			m.l.Info("logged in", zap.String("account", pre.Args[len(pre.Args)-2]))
		}
		return
	case "903":
		m.l.Info("SASL authentication succeeded")
	default:
		m.l.Error("SASL authentication failed", zap.String("event", pre.Event), zap.String("reason", pre.Text))
	}

	m.caps.Lock()
	m.caps.authing = false
	m.caps.Unlock()
	m.maybeEndCap()
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), s) {
			return true
		}
	}
	return false
}
