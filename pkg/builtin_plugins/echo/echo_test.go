package echo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jirwin/quirc/pkg/quirctest"
)

func TestEcho(t *testing.T) {
	b := quirctest.New(t)
	b.Register(Register())

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "echo", text: ".echo hello there", want: []string{"PRIVMSG #channel :hello there"}},
		{name: "empty", text: ".echo", want: []string{}},
		{name: "other command", text: ".echoes", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.ClearSent()
			b.Say("Alice", tt.text)
			require.Equal(t, tt.want, b.Sent())
		})
	}
}

func TestEchoAction(t *testing.T) {
	b := quirctest.New(t)
	b.Register(Register())

	b.Action("Alice", quirctest.Channel, "echoes loudly")
	require.Equal(t, []string{"PRIVMSG #channel :\x01ACTION echoes loudly\x01"}, b.Sent())
}
