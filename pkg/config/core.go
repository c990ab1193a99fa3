package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	AuthNickServ = "nickserv"
	AuthSASL     = "sasl"
	AuthServer   = "server"

	DBTypeBolt   = "bolt"
	DBTypeSQLite = "sqlite"

	DefaultPrefix  = `\.`
	DefaultTimeout = 120 * time.Second
)

// CoreSection holds the typed [core] settings.
type CoreSection struct {
	Nick       string
	User       string
	Name       string
	AliasNicks []string

	Host      string
	Port      int
	UseSSL    bool
	VerifySSL bool
	CACerts   string
	BindHost  string

	ServerPassword string
	AuthMethod     string
	AuthUsername   string
	AuthPassword   string
	AuthTarget     string

	Channels          []string
	CommandsOnConnect []string
	Modes             string

	Owner         string
	OwnerAccount  string
	Admins        []string
	AdminAccounts []string

	Prefix      string
	HelpPrefix  string
	Enable      []string
	Exclude     []string
	NickBlocks  []string
	HostBlocks  []string
	ReplyErrors bool

	HomeDir      string
	DBType       string
	DBFilename   string
	LoggingLevel string

	Timeout             time.Duration
	TimeoutPingInterval time.Duration

	FloodBurstLines   int
	FloodEmptyWait    time.Duration
	FloodRefillRate   float64
	FloodTextLength   int
	FloodMaxWait      time.Duration
	FloodPenaltyRatio float64
}

// ChannelSection holds the settings of a [#channel] section.
type ChannelSection struct {
	Name            string
	DisablePlugins  []string
	DisableCommands []string
}

// PluginDisabled reports whether the plugin is disabled in the channel.
func (c ChannelSection) PluginDisabled(plugin string) bool {
	for _, p := range c.DisablePlugins {
		if p == "*" || p == plugin {
			return true
		}
	}
	return false
}

// CommandDisabled reports whether plugin.label is disabled in the channel.
func (c ChannelSection) CommandDisabled(plugin, label string) bool {
	name := plugin + "." + label
	for _, cmd := range c.DisableCommands {
		if cmd == name {
			return true
		}
	}
	return false
}

// WebhookSection holds the [webhook] settings.
type WebhookSection struct {
	ListenAddr string
	Secret     string
}

type getter func(option string) (string, bool)

func (g getter) str(option, def string) string {
	if v, ok := g(option); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (g getter) list(option string) []string {
	if v, ok := g(option); ok {
		return ParseList(v)
	}
	return []string{}
}

func (g getter) lines(option string) []string {
	out := []string{}
	if v, ok := g(option); ok {
		for _, line := range strings.Split(v, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

func (g getter) boolean(option string, def bool) (bool, error) {
	v, ok := g(option)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "yes", "y", "true", "on":
		return true, nil
	case "0", "no", "n", "false", "off":
		return false, nil
	}
	return def, fmt.Errorf("%w for %s: %q is not a boolean", ErrInvalidValue, option, v)
}

func (g getter) integer(option string, def int) (int, error) {
	v, ok := g(option)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%w for %s: %q is not an integer", ErrInvalidValue, option, v)
	}
	return i, nil
}

func (g getter) float(option string, def float64) (float64, error) {
	v, ok := g(option)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def, fmt.Errorf("%w for %s: %q is not a number", ErrInvalidValue, option, v)
	}
	return f, nil
}

// seconds reads a duration written as a number of seconds.
func (g getter) seconds(option string, def time.Duration) (time.Duration, error) {
	f, err := g.float(option, def.Seconds())
	if err != nil {
		return def, err
	}
	if f < 0 {
		return def, fmt.Errorf("%w for %s: must not be negative", ErrInvalidValue, option)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func (g getter) choice(option, def string, choices ...string) (string, error) {
	v := strings.ToLower(g.str(option, def))
	for _, c := range choices {
		if v == c {
			return v, nil
		}
	}
	return def, fmt.Errorf("%w for %s: %q is not one of %s", ErrInvalidValue, option, v, strings.Join(choices, ", "))
}

// DefaultHomeDir is ~/.quirc.
func DefaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quirc"
	}
	return filepath.Join(home, ".quirc")
}

// helpPrefix derives the prefix shown in help from the command prefix regex.
func helpPrefix(prefix string) string {
	if strings.HasPrefix(prefix, `\`) && len(prefix) > 1 {
		return prefix[1:2]
	}
	if prefix == "" {
		return "."
	}
	return prefix[:1]
}

func parseCore(raw func(option string) (string, bool), path string) (CoreSection, error) {
	g := getter(raw)
	var err error

	c := CoreSection{
		Nick:              g.str("nick", "Quirc"),
		Name:              g.str("name", "Quirc IRC bot"),
		AliasNicks:        g.list("alias_nicks"),
		Host:              g.str("host", "irc.libera.chat"),
		CACerts:           g.str("ca_certs", ""),
		BindHost:          g.str("bind_host", ""),
		ServerPassword:    g.str("server_password", ""),
		AuthUsername:      g.str("auth_username", ""),
		AuthPassword:      g.str("auth_password", ""),
		Channels:          g.list("channels"),
		CommandsOnConnect: g.lines("commands_on_connect"),
		Modes:             g.str("modes", "B"),
		Owner:             g.str("owner", ""),
		OwnerAccount:      g.str("owner_account", ""),
		Admins:            g.list("admins"),
		AdminAccounts:     g.list("admin_accounts"),
		Prefix:            g.str("prefix", DefaultPrefix),
		Enable:            g.list("enable"),
		Exclude:           g.list("exclude"),
		NickBlocks:        g.list("nick_blocks"),
		HostBlocks:        g.list("host_blocks"),
		LoggingLevel:      g.str("logging_level", "info"),
	}
	c.User = g.str("user", strings.ToLower(c.Nick))
	c.HelpPrefix = g.str("help_prefix", helpPrefix(c.Prefix))

	if _, err := regexp.Compile(c.Prefix); err != nil {
		return c, fmt.Errorf("%w for prefix: %s", ErrInvalidValue, err)
	}

	if c.UseSSL, err = g.boolean("use_ssl", false); err != nil {
		return c, err
	}
	if c.VerifySSL, err = g.boolean("verify_ssl", true); err != nil {
		return c, err
	}
	if c.ReplyErrors, err = g.boolean("reply_errors", true); err != nil {
		return c, err
	}

	defaultPort := 6667
	if c.UseSSL {
		defaultPort = 6697
	}
	if c.Port, err = g.integer("port", defaultPort); err != nil {
		return c, err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return c, fmt.Errorf("%w for port: %d", ErrInvalidValue, c.Port)
	}

	if c.AuthMethod, err = g.choice("auth_method", "", "", AuthNickServ, AuthSASL, AuthServer); err != nil {
		return c, err
	}
	authTarget := "NickServ"
	if c.AuthMethod == AuthSASL {
		authTarget = "PLAIN"
	}
	c.AuthTarget = g.str("auth_target", authTarget)
	if c.AuthMethod == AuthSASL {
		c.AuthTarget = strings.ToUpper(c.AuthTarget)
		if c.AuthTarget != "PLAIN" && c.AuthTarget != "EXTERNAL" {
			return c, fmt.Errorf("%w for auth_target: unsupported SASL mechanism %s", ErrInvalidValue, c.AuthTarget)
		}
	}

	defaultHome := DefaultHomeDir()
	if path != "" {
		defaultHome = filepath.Dir(path)
	}
	c.HomeDir = g.str("homedir", defaultHome)

	if c.DBType, err = g.choice("db_type", DBTypeBolt, DBTypeBolt, DBTypeSQLite); err != nil {
		return c, err
	}
	configName := "default"
	if path != "" {
		configName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	c.DBFilename = g.str("db_filename", filepath.Join(c.HomeDir, configName+".db"))
	if !filepath.IsAbs(c.DBFilename) {
		c.DBFilename = filepath.Join(c.HomeDir, c.DBFilename)
	}

	if c.Timeout, err = g.seconds("timeout", DefaultTimeout); err != nil {
		return c, err
	}
	if c.TimeoutPingInterval, err = g.seconds("timeout_ping_interval", c.Timeout*45/100); err != nil {
		return c, err
	}

	if c.FloodBurstLines, err = g.integer("flood_burst_lines", 4); err != nil {
		return c, err
	}
	if c.FloodEmptyWait, err = g.seconds("flood_empty_wait", 700*time.Millisecond); err != nil {
		return c, err
	}
	if c.FloodRefillRate, err = g.float("flood_refill_rate", 1); err != nil {
		return c, err
	}
	if c.FloodTextLength, err = g.integer("flood_text_length", 50); err != nil {
		return c, err
	}
	if c.FloodMaxWait, err = g.seconds("flood_max_wait", 2*time.Second); err != nil {
		return c, err
	}
	if c.FloodPenaltyRatio, err = g.float("flood_penalty_ratio", 1.4); err != nil {
		return c, err
	}

	return c, nil
}

func parseChannel(name string, raw func(option string) (string, bool)) ChannelSection {
	g := getter(raw)
	return ChannelSection{
		Name:            name,
		DisablePlugins:  g.list("disable_plugins"),
		DisableCommands: g.list("disable_commands"),
	}
}

func parseWebhook(raw func(option string) (string, bool)) WebhookSection {
	g := getter(raw)
	return WebhookSection{
		ListenAddr: g.str("listen_addr", ""),
		Secret:     g.str("secret", ""),
	}
}
