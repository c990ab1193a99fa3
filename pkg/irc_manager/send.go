package irc_manager

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/irc"
	"github.com/jirwin/quirc/pkg/metrics"
)

// maxLineBytes is the longest line body, the CRLF terminator excluded.
const maxLineBytes = irc.MaxLineLength - 2

func truncateLine(line string) string {
	if len(line) <= maxLineBytes {
		return line
	}
	cut := maxLineBytes
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}

func (m *ManagerImpl) writeLine(line string) error {
	m.writeMtx.Lock()
	defer m.writeMtx.Unlock()

	return m.writeLocked(line)
}

func (m *ManagerImpl) writeLocked(line string) error {
	if err := m.backend.WriteLine(truncateLine(line)); err != nil {
		return err
	}
	metrics.LinesSent.Inc()
	return nil
}

// throttled writes a message line once flood control allows it. Throttled lines wait their turn
// on floodMtx; writeMtx is only held for the write so PONG and other direct lines are not delayed.
func (m *ManagerImpl) throttled(line, text string) error {
	m.floodMtx.Lock()
	defer m.floodMtx.Unlock()

	if wait := m.flood.delay(m.now(), text); wait > 0 {
		m.mtx.RLock()
		ctx := m.ctx
		m.mtx.RUnlock()

		t := time.NewTimer(wait)
		if ctx != nil {
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		} else {
			<-t.C
		}
	}

	return m.writeLine(line)
}

// send writes a command, using a trailing parameter only when the last one needs it.
func (m *ManagerImpl) send(command string, params ...string) error {
	clean := make([]string, len(params))
	for i, p := range params {
		clean[i] = irc.Safe(p)
	}
	msg := &irc.Message{Command: command, Params: clean}
	return m.writeLine(msg.String())
}

// Write sends a raw command. The last argument is sent as the trailing parameter.
func (m *ManagerImpl) Write(args ...string) error {
	if len(args) == 0 {
		return nil
	}
	return m.writeLine(irc.BuildLine(args...))
}

// hostmask returns the bot's own hostmask, or a worst case guess before the server showed it.
func (m *ManagerImpl) hostmask() string {
	m.state.RLock()
	defer m.state.RUnlock()

	if m.state.hostmask != "" {
		return m.state.hostmask
	}
	return m.state.nick + "!~" + m.c.User + "@" + strings.Repeat("x", 63)
}

// Say sends text to dest, split into at most maxMessages lines that fit the server's line length.
func (m *ManagerImpl) Say(text, dest string, maxMessages int, truncation, trailing string) error {
	if dest == "" {
		return ErrNoRecipient
	}

	prefix := fmt.Sprintf(":%s PRIVMSG %s :", m.hostmask(), dest)
	maxBytes := maxLineBytes - len(prefix)
	recipient := m.CaseMapping().Lower(dest)

	for _, part := range irc.SplitMessage(irc.Safe(text), maxBytes, maxMessages, irc.Safe(truncation), irc.Safe(trailing)) {
		out, ok := m.loop.admit(m.now(), recipient, part)
		if !ok {
			m.l.Warn("dropping repeated message", zap.String("recipient", dest))
			metrics.MessagesDropped.WithLabelValues("loop").Inc()
			continue
		}
		if out != part {
			metrics.MessagesDropped.WithLabelValues("replaced").Inc()
		}

		if err := m.throttled(irc.BuildLine("PRIVMSG", dest, out), out); err != nil {
			return err
		}
	}

	return nil
}

func (m *ManagerImpl) Notice(text, dest string) error {
	if dest == "" {
		return ErrNoRecipient
	}
	text = irc.Safe(text)
	return m.throttled(irc.BuildLine("NOTICE", dest, text), text)
}

func (m *ManagerImpl) Action(text, dest string) error {
	return m.Say(irc.FormatCTCP("ACTION", text), dest, 1, "", "")
}

// Reply addresses nick in dest, as a notice when notice is set.
func (m *ManagerImpl) Reply(text, dest, nick string, notice bool) error {
	text = fmt.Sprintf("%s: %s", nick, text)
	if notice {
		return m.Notice(text, dest)
	}
	return m.Say(text, dest, 1, "", "")
}

func (m *ManagerImpl) Join(channel, password string) error {
	if password != "" {
		return m.send("JOIN", channel, password)
	}
	return m.send("JOIN", channel)
}

func (m *ManagerImpl) Part(channel, message string) error {
	if message != "" {
		return m.Write("PART", channel, message)
	}
	return m.send("PART", channel)
}

func (m *ManagerImpl) Kick(channel, nick, message string) error {
	if message != "" {
		return m.Write("KICK", channel, nick, message)
	}
	return m.send("KICK", channel, nick)
}

func (m *ManagerImpl) Mode(target string, modes ...string) error {
	return m.send("MODE", append([]string{target}, modes...)...)
}

func (m *ManagerImpl) ChangeNick(nick string) error {
	return m.send("NICK", nick)
}
