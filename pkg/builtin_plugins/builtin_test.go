package builtin_plugins

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/quirctest"
)

func TestAll(t *testing.T) {
	b := quirctest.New(t, quirctest.WithCore("exclude = weather"))

	registered := []string{}
	for _, p := range All() {
		err := b.Plugins.Register(p)
		if p.GetId() == "weather" {
			require.ErrorIs(t, err, plugin_manager.ErrPluginDisabled)
			continue
		}
		require.NoError(t, err)
		registered = append(registered, p.GetId())
	}

	sort.Strings(registered)
	require.Equal(t, registered, b.Plugins.Plugins())
	require.Len(t, registered, 14)

	b.Say("Alice", ".echo all loaded")
	require.Equal(t, []string{"PRIVMSG #channel :all loaded"}, b.Sent())
}
