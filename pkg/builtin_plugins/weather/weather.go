package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

const (
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com"
	defaultForecastURL  = "https://api.open-meteo.com"
	locationKey         = "weather_location"
	requestTimeout      = 10 * time.Second
)

var ErrUnknownLocation = errors.New("unknown location")

// Location is a geocoded place, stored per nick by setlocation.
type Location struct {
	Name      string  `json:"name"`
	Admin1    string  `json:"admin1,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l *Location) String() string {
	parts := []string{l.Name}
	for _, p := range []string{l.Admin1, l.Country} {
		if p != "" && p != l.Name {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type geocodingResponse struct {
	Results []Location `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		WeatherCode   int     `json:"weather_code"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WindDirection float64 `json:"wind_direction_10m"`
	} `json:"current"`
	Daily struct {
		WeatherCode []int     `json:"weather_code"`
		Max         []float64 `json:"temperature_2m_max"`
		Min         []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

var beaufort = []struct {
	knots       int
	description string
}{
	{1, "Calm"},
	{4, "Light air"},
	{7, "Light breeze"},
	{11, "Gentle breeze"},
	{16, "Moderate breeze"},
	{22, "Fresh breeze"},
	{28, "Strong breeze"},
	{34, "Near gale"},
	{41, "Gale"},
	{48, "Strong gale"},
	{56, "Storm"},
	{64, "Violent storm"},
}

// arrows point where the wind blows to, starting with wind from the north.
var arrows = []string{"↓", "↙", "←", "↖", "↑", "↗", "→", "↘"}

// describeWind formats a speed in km/h and a direction in degrees, e.g. "Gentle breeze 4.2m/s (↑)".
func describeWind(kph, degrees float64) string {
	knots := int(math.Round(kph / 1.852))
	description := "Hurricane"
	for _, b := range beaufort {
		if knots < b.knots {
			description = b.description
			break
		}
	}

	degrees = math.Mod(math.Mod(degrees, 360)+360, 360)
	sector := 0
	if degrees > 22.5 && degrees <= 337.5 {
		sector = int(math.Ceil((degrees - 22.5) / 45))
	}
	ms := math.Round(kph/3.6*10) / 10

	return fmt.Sprintf("%s %sm/s (%s)", description, strconv.FormatFloat(ms, 'f', 1, 64), arrows[sector])
}

func formatTemp(celsius float64) string {
	c := int(celsius)
	return fmt.Sprintf("%d°C (%d°F)", c, int(float64(c)*9/5+32))
}

var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Freezing drizzle",
	61: "Light rain",
	63: "Rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Freezing rain",
	71: "Light snow",
	73: "Snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Light showers",
	81: "Showers",
	82: "Violent showers",
	85: "Light snow showers",
	86: "Snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Thunderstorm with heavy hail",
}

func describeCode(code int) string {
	if d, ok := weatherCodes[code]; ok {
		return d
	}
	return "unknown"
}

type weather struct {
	client       *http.Client
	geocodingURL string
	forecastURL  string
}

func (w *weather) load(helper plugin_manager.PluginHelper) error {
	w.client = &http.Client{Timeout: requestTimeout}
	w.geocodingURL = strings.TrimSuffix(helper.Setting("geocoding_url", defaultGeocodingURL), "/")
	w.forecastURL = strings.TrimSuffix(helper.Setting("forecast_url", defaultForecastURL), "/")
	return nil
}

func (w *weather) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather service returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (w *weather) geocode(ctx context.Context, place string) (*Location, error) {
	res := &geocodingResponse{}
	err := w.getJSON(ctx, w.geocodingURL+"/v1/search", url.Values{
		"name":     {place},
		"count":    {"1"},
		"language": {"en"},
		"format":   {"json"},
	}, res)
	if err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, place)
	}
	return &res.Results[0], nil
}

func (w *weather) forecast(ctx context.Context, loc *Location) (*forecastResponse, error) {
	res := &forecastResponse{}
	err := w.getJSON(ctx, w.forecastURL+"/v1/forecast", url.Values{
		"latitude":      {strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		"longitude":     {strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"current":       {"temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m,wind_direction_10m"},
		"daily":         {"weather_code,temperature_2m_max,temperature_2m_min"},
		"timezone":      {"auto"},
		"forecast_days": {"2"},
	}, res)
	return res, err
}

// resolve finds the location for the command argument: the sender's stored location when empty, a
// nick's stored location, or a place name.
func (w *weather) resolve(ctx context.Context, msg *plugin_manager.TriggerMsg) (*Location, error) {
	db := msg.Helper.DB()
	arg := strings.TrimSpace(msg.Trigger.Group(2))

	loc := &Location{}
	if arg == "" {
		ok, err := db.GetNickValue(msg.Trigger.Nick, locationKey, loc)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return loc, nil
	}

	if !strings.ContainsAny(arg, " ,") {
		ok, err := db.GetNickValue(arg, locationKey, loc)
		if err != nil {
			return nil, err
		}
		if ok {
			return loc, nil
		}
	}

	return w.geocode(ctx, arg)
}

func (w *weather) report(ctx context.Context, msg *plugin_manager.TriggerMsg, format func(*Location, *forecastResponse) string) error {
	loc, err := w.resolve(ctx, msg)
	if errors.Is(err, ErrUnknownLocation) {
		msg.Helper.Reply("I don't know where that is.") //nolint:errcheck
		return rules.ErrNoLimit
	}
	if err != nil {
		zap.L().Error("error looking up location", zap.Error(err))
		msg.Helper.Reply("Sorry, the weather service is unavailable.") //nolint:errcheck
		return rules.ErrNoLimit
	}
	if loc == nil {
		prefix := msg.Helper.Settings().Core().HelpPrefix
		msg.Helper.Reply(fmt.Sprintf("I don't know where you live. Give me a location, like %s%s London, "+ //nolint:errcheck
			"or tell me where you live by saying %ssetlocation London, for example.", prefix, msg.Trigger.Group(1), prefix))
		return rules.ErrNoLimit
	}

	fc, err := w.forecast(ctx, loc)
	if err != nil {
		zap.L().Error("error getting forecast", zap.Error(err))
		msg.Helper.Reply("No forecast available. Try a more specific location.") //nolint:errcheck
		return rules.ErrNoLimit
	}

	return msg.Helper.Say(format(loc, fc))
}

func formatCurrent(loc *Location, fc *forecastResponse) string {
	c := fc.Current
	return fmt.Sprintf("%s: %s, %s, Humidity: %d%%, %s", loc, describeCode(c.WeatherCode), formatTemp(c.Temperature),
		int(c.Humidity), describeWind(c.WindSpeed, c.WindDirection))
}

func formatTomorrow(loc *Location, fc *forecastResponse) string {
	d := fc.Daily
	if len(d.WeatherCode) < 2 || len(d.Max) < 2 || len(d.Min) < 2 {
		return fmt.Sprintf("%s: no forecast for tomorrow.", loc)
	}
	return fmt.Sprintf("%s: Tomorrow: %s, High: %s Low: %s", loc, describeCode(d.WeatherCode[1]), formatTemp(d.Max[1]), formatTemp(d.Min[1]))
}

func (w *weather) weatherCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	return w.report(ctx, msg, formatCurrent)
}

func (w *weather) forecastCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	return w.report(ctx, msg, formatTomorrow)
}

func (w *weather) setLocationCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	place := strings.TrimSpace(msg.Trigger.Group(2))
	if place == "" {
		msg.Helper.Reply(`Give me a location, like "Washington, DC" or "London".`) //nolint:errcheck
		return rules.ErrNoLimit
	}

	loc, err := w.geocode(ctx, place)
	if errors.Is(err, ErrUnknownLocation) {
		return msg.Helper.Reply("I don't know where that is.")
	}
	if err != nil {
		zap.L().Error("error looking up location", zap.Error(err))
		msg.Helper.Reply("Sorry, the weather service is unavailable.") //nolint:errcheck
		return rules.ErrNoLimit
	}

	if err := msg.Helper.DB().SetNickValue(msg.Trigger.Nick, locationKey, loc); err != nil {
		return err
	}
	return msg.Helper.Reply(fmt.Sprintf("I now have you at %s.", loc))
}

func Register() plugin_manager.Plugin {
	w := &weather{}

	return plugin_manager.MakePlugin(
		"weather",
		plugin_manager.WithLoad(w.load),
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("weather", w.weatherCommand,
				rules.WithAliases("wea"),
				rules.WithDoc("Shows the weather at the given location, or at yours."),
				rules.WithExamples(rules.Example{Text: ".weather London"}),
			),
			plugin_manager.MakeCommand("forecast", w.forecastCommand,
				rules.WithDoc("Shows tomorrow's forecast at the given location, or at yours."),
				rules.WithExamples(rules.Example{Text: ".forecast Montreal, QC"}),
			),
			plugin_manager.MakeCommand("setlocation", w.setLocationCommand,
				rules.WithDoc("Sets your default weather location."),
				rules.WithExamples(rules.Example{Text: ".setlocation Columbus, OH"}),
			),
		),
	)
}
