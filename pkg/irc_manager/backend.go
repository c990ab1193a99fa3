package irc_manager

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var ErrNotConnected = errors.New("not connected")

const writeTimeout = 30 * time.Second

// Backend is the line transport to an IRC server.
type Backend interface {
	Connect(ctx context.Context) error
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

type BackendConfig struct {
	Host        string
	Port        int
	UseSSL      bool
	VerifySSL   bool
	CACerts     string
	BindHost    string
	DialTimeout time.Duration
}

// TCPBackend talks to the server over plain TCP or TLS.
type TCPBackend struct {
	c      BackendConfig
	mtx    sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

func (b *TCPBackend) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName:         b.c.Host,
		InsecureSkipVerify: !b.c.VerifySSL, //nolint:gosec
	}

	if b.c.CACerts != "" {
		pem, err := os.ReadFile(b.c.CACerts)
		if err != nil {
			return nil, fmt.Errorf("reading ca_certs: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", b.c.CACerts)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

func (b *TCPBackend) Connect(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: b.c.DialTimeout}
	if b.c.BindHost != "" {
		local, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(b.c.BindHost, "0"))
		if err != nil {
			return fmt.Errorf("resolving bind_host: %w", err)
		}
		dialer.LocalAddr = local
	}

	addr := net.JoinHostPort(b.c.Host, strconv.Itoa(b.c.Port))

	var conn net.Conn
	var err error
	if b.c.UseSSL {
		cfg, cfgErr := b.tlsConfig()
		if cfgErr != nil {
			return cfgErr
		}
		d := &tls.Dialer{NetDialer: dialer, Config: cfg}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.conn = conn
	b.reader = bufio.NewReader(conn)

	return nil
}

// ReadLine returns the next line without its terminator. Lines that are not valid UTF-8 are
// decoded as latin-1.
func (b *TCPBackend) ReadLine() (string, error) {
	b.mtx.Lock()
	reader := b.reader
	b.mtx.Unlock()

	if reader == nil {
		return "", ErrNotConnected
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return decodeLine(strings.TrimRight(line, "\r\n")), nil
}

func (b *TCPBackend) WriteLine(line string) error {
	b.mtx.Lock()
	conn := b.conn
	b.mtx.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := conn.Write([]byte(line + "\r\n"))
	return err
}

func (b *TCPBackend) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	b.reader = nil
	return err
}

func decodeLine(line string) string {
	if utf8.ValidString(line) {
		return line
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().String(line)
	if err != nil {
		return strings.ToValidUTF8(line, "�")
	}
	return decoded
}

func NewTCPBackend(c BackendConfig) *TCPBackend {
	return &TCPBackend{c: c}
}

// NewBackend returns the TCP backend for the configured server.
func NewBackend(c Config) Backend {
	return NewTCPBackend(c.Backend)
}
