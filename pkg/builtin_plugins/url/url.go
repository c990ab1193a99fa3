package url

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

const (
	defaultCacheSize = 256
	maxBodyBytes     = 1 << 20
	maxTitleLength   = 200
	fetchTimeout     = 10 * time.Second
	userAgent        = "quirc-url-titles/1.0"
	lastURLKey       = "url.last:"
)

var (
	ErrPrivateAddress = errors.New("refusing to connect to a private address")
	ErrNotHTML        = errors.New("not an html page")
	ErrNoTitle        = errors.New("page has no title")

	whitespace = regexp.MustCompile(`\s+`)

	// carrierNAT is the shared address space of RFC 6598.
	carrierNAT = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}
)

func isPrivate(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	return carrierNAT.Contains(ip) || ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsUnspecified()
}

// denyPrivate is a dialer control rejecting private addresses. It sees the resolved address of every
// connection, redirects included.
func denyPrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || isPrivate(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
	}
	return nil
}

func newClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: fetchTimeout}
	if !allowPrivate {
		dialer.Control = denyPrivate
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	return &http.Client{
		Timeout:   fetchTimeout,
		Transport: transport,
	}
}

type titles struct {
	l        *zap.Logger
	client   *http.Client
	cache    *lru.Cache[string, string]
	excludes []*regexp.Regexp
}

func (t *titles) load(helper plugin_manager.PluginHelper) error {
	t.l = helper.Logger()

	size := defaultCacheSize
	if raw := helper.Setting("cache_size", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid url.cache_size %q", raw)
		}
		size = n
	}

	cache, err := lru.New[string, string](size)
	if err != nil {
		return err
	}
	t.cache = cache

	t.excludes = nil
	for _, pattern := range config.ParseList(helper.Setting("exclude", "")) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid url.exclude pattern %q: %w", pattern, err)
		}
		t.excludes = append(t.excludes, re)
	}

	t.client = newClient(helper.Setting("allow_private", "false") == "true")
	return nil
}

func (t *titles) excluded(link string) bool {
	for _, re := range t.excludes {
		if re.MatchString(link) {
			return true
		}
	}
	return false
}

// fetchTitle returns the whitespace-collapsed title of an html page.
func (t *titles) fetchTitle(ctx context.Context, link string) (string, error) {
	if title, ok := t.cache.Get(link); ok {
		return title, nil
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || (mediaType != "text/html" && mediaType != "application/xhtml+xml") {
		return "", ErrNotHTML
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(whitespace.ReplaceAllString(doc.Find("title").First().Text(), " "))
	if title == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			title = strings.TrimSpace(whitespace.ReplaceAllString(og, " "))
		}
	}
	if title == "" {
		return "", ErrNoTitle
	}
	if r := []rune(title); len(r) > maxTitleLength {
		title = string(r[:maxTitleLength]) + "…"
	}

	t.cache.Add(link, title)
	return title, nil
}

func (t *titles) sayTitle(ctx context.Context, msg *plugin_manager.TriggerMsg, link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return err
	}

	title, err := t.fetchTitle(ctx, link)
	if err != nil {
		t.l.Debug("no title for link", zap.String("url", link), zap.Error(err))
		return err
	}

	return msg.Helper.Say(fmt.Sprintf("[ %s ] - %s", title, u.Hostname()))
}

func (t *titles) urlCallback(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	link := msg.Trigger.Group(0)
	if msg.Trigger.IsChannelMessage() {
		msg.Helper.Memory().Set(lastURLKey+strings.ToLower(msg.Trigger.Sender), link)
	}

	if t.excluded(link) {
		return rules.ErrNoLimit
	}
	if err := t.sayTitle(ctx, msg, link); err != nil {
		return rules.ErrNoLimit
	}
	return nil
}

func (t *titles) titleCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	link := msg.Trigger.Group(3)
	if link == "" {
		if v, ok := msg.Helper.Memory().Get(lastURLKey + strings.ToLower(msg.Trigger.Sender)); ok {
			link, _ = v.(string)
		}
	}
	if link == "" {
		msg.Helper.Reply("Which link?") //nolint:errcheck
		return rules.ErrNoLimit
	}
	if !strings.Contains(link, "://") {
		link = "http://" + link
	}

	if err := t.sayTitle(ctx, msg, link); err != nil {
		msg.Helper.Reply("Sorry, I couldn't get a title for that link.") //nolint:errcheck
		return rules.ErrNoLimit
	}
	return nil
}

func Register() plugin_manager.Plugin {
	t := &titles{}

	return plugin_manager.MakePlugin(
		"url",
		plugin_manager.WithLoad(t.load),
		plugin_manager.WithURLCallbacks(
			plugin_manager.MakeURLCallback([]string{`.+`}, t.urlCallback,
				rules.WithLabel("title"),
				rules.WithPriority(rules.PriorityLow),
			),
		),
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("title", t.titleCommand,
				rules.WithDoc("Shows the title of a link, the last one posted in the channel by default."),
				rules.WithExamples(rules.Example{Text: ".title https://example.com/"}),
			),
		),
	)
}
