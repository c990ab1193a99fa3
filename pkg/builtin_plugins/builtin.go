package builtin_plugins

import (
	"github.com/jirwin/quirc/pkg/builtin_plugins/admin"
	"github.com/jirwin/quirc/pkg/builtin_plugins/announce"
	"github.com/jirwin/quirc/pkg/builtin_plugins/echo"
	"github.com/jirwin/quirc/pkg/builtin_plugins/help"
	"github.com/jirwin/quirc/pkg/builtin_plugins/karma"
	"github.com/jirwin/quirc/pkg/builtin_plugins/ping"
	"github.com/jirwin/quirc/pkg/builtin_plugins/random"
	"github.com/jirwin/quirc/pkg/builtin_plugins/remind"
	"github.com/jirwin/quirc/pkg/builtin_plugins/resp"
	"github.com/jirwin/quirc/pkg/builtin_plugins/seen"
	"github.com/jirwin/quirc/pkg/builtin_plugins/spellcheck"
	"github.com/jirwin/quirc/pkg/builtin_plugins/unicode"
	"github.com/jirwin/quirc/pkg/builtin_plugins/uptime"
	"github.com/jirwin/quirc/pkg/builtin_plugins/url"
	"github.com/jirwin/quirc/pkg/builtin_plugins/weather"
	"github.com/jirwin/quirc/pkg/plugin_manager"
)

var (
	Admin      = admin.Register
	Announce   = announce.Register
	Echo       = echo.Register
	Help       = help.Register
	Karma      = karma.Register
	Ping       = ping.Register
	Random     = random.Register
	Remind     = remind.Register
	Resp       = resp.Register
	Seen       = seen.Register
	Spellcheck = spellcheck.Register
	Unicode    = unicode.Register
	Uptime     = uptime.Register
	URL        = url.Register
	Weather    = weather.Register
)

// All returns a fresh instance of every builtin plugin.
func All() []plugin_manager.Plugin {
	return []plugin_manager.Plugin{
		Admin(),
		Announce(),
		Echo(),
		Help(),
		Karma(),
		Ping(),
		Random(),
		Remind(),
		Resp(),
		Seen(),
		Spellcheck(),
		Unicode(),
		Uptime(),
		URL(),
		Weather(),
	}
}
