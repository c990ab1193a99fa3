package irc_manager

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii", "PING :server", "PING :server"},
		{"utf8", "PRIVMSG #c :café", "PRIVMSG #c :café"},
		{"latin1", "PRIVMSG #c :caf\xe9", "PRIVMSG #c :café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, decodeLine(tt.in))
		})
	}
}

func TestTCPBackend(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		conn.Write([]byte("PING :irc.example.com\r\n:a!b@c PRIVMSG #c :caf\xe9\r\n")) //nolint:errcheck
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			return
		}
		received <- line
	}()

	addr := ln.Addr().(*net.TCPAddr)
	b := NewTCPBackend(BackendConfig{
		Host:        "127.0.0.1",
		Port:        addr.Port,
		DialTimeout: time.Second,
	})

	_, err = b.ReadLine()
	require.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, b.Connect(context.Background()))

	line, err := b.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "PING :irc.example.com", line)

	line, err = b.ReadLine()
	require.NoError(t, err)
	require.Equal(t, ":a!b@c PRIVMSG #c :café", line)

	require.NoError(t, b.WriteLine("PONG :irc.example.com"))
	select {
	case got := <-received:
		require.Equal(t, "PONG :irc.example.com\r\n", got)
	case <-time.After(time.Second):
		t.Fatal("server did not receive the line")
	}

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	_, err = b.ReadLine()
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, b.WriteLine("PING x"), ErrNotConnected)
}

func TestTCPBackendConnectErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	b := NewTCPBackend(BackendConfig{Host: "127.0.0.1", Port: port, DialTimeout: time.Second})
	require.Error(t, b.Connect(context.Background()))

	b = NewTCPBackend(BackendConfig{
		Host:        "127.0.0.1",
		Port:        port,
		UseSSL:      true,
		VerifySSL:   true,
		CACerts:     filepath.Join(t.TempDir(), "missing.pem"),
		DialTimeout: time.Second,
	})
	err = b.Connect(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading ca_certs")
}

func TestNewBackend(t *testing.T) {
	c := testConfig("Quirc")
	b, ok := NewBackend(c).(*TCPBackend)
	require.True(t, ok)
	require.Equal(t, "irc.example.com", b.c.Host)
	require.Equal(t, "6667", strconv.Itoa(b.c.Port))
}
