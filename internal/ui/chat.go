package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
)

// TypingTimeout is how long the local typing indicator outlives the last
// keystroke. A burst longer than that is announced again.
const TypingTimeout = 3 * time.Second

// PartnerTypingTimeout clears the partner's indicator when neither a fresh
// typing event nor a stop arrives, e.g. when the stop was dropped.
const PartnerTypingTimeout = 2 * TypingTimeout

const chatHistory = 50

// Emitter sends events to the room.
type Emitter interface {
	Emit(ev protocol.Event) error
}

// ChatFeed is where the chat model reads the partner's events from.
type ChatFeed struct {
	Messages <-chan protocol.ChatMessage
	Typing   <-chan protocol.Typing
}

type (
	chatMsg       protocol.ChatMessage
	typingMsg     protocol.Typing
	typingTimeout struct{ seq int }
	partnerStale  struct{ seq int }
	feedClosed    struct{}
	emitFailed    struct{ err error }
)

type chatLine struct {
	own  bool
	name string
	text string
	at   time.Time
}

// ChatModel is the bubbletea model of `itoo chat`.
type ChatModel struct {
	emitter Emitter
	feed    ChatFeed
	room    string
	me      string
	name    string

	input textinput.Model
	lines []chatLine

	typing        bool
	typingSeq     int
	announcedAt   time.Time
	partnerTyping bool
	partnerSeq    int
	closed        bool
	err           error

	now   func() time.Time
	newID func() string
}

func NewChatModel(emitter Emitter, feed ChatFeed, room, me, name string) *ChatModel {
	input := textinput.New()
	input.Placeholder = "Say something sweet..."
	input.Prompt = "> "
	input.CharLimit = 1000
	input.Focus()

	if name == "" {
		name = me
	}
	return &ChatModel{
		emitter: emitter,
		feed:    feed,
		room:    room,
		me:      me,
		name:    name,
		input:   input,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitMessage(), m.waitTyping())
}

func (m *ChatModel) waitMessage() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.feed.Messages
		if !ok {
			return feedClosed{}
		}
		return chatMsg(msg)
	}
}

func (m *ChatModel) waitTyping() tea.Cmd {
	return func() tea.Msg {
		t, ok := <-m.feed.Typing
		if !ok {
			return feedClosed{}
		}
		return typingMsg(t)
	}
}

func (m *ChatModel) emit(ev protocol.Event) tea.Cmd {
	if err := m.emitter.Emit(ev); err != nil {
		return func() tea.Msg { return emitFailed{err} }
	}
	return nil
}

func (m *ChatModel) stopTyping() tea.Cmd {
	if !m.typing {
		return nil
	}
	m.typing = false
	return m.emit(protocol.Typing{RoomID: m.room, IsTyping: false})
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Sequence(m.stopTyping(), tea.Quit)
		case tea.KeyEnter:
			return m, m.send()
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if m.input.Value() == before {
			return m, cmd
		}
		if m.input.Value() == "" {
			return m, tea.Batch(cmd, m.stopTyping())
		}
		return m, tea.Batch(cmd, m.keystroke())

	case typingTimeout:
		if msg.seq == m.typingSeq {
			return m, m.stopTyping()
		}

	case chatMsg:
		m.partnerTyping = false
		name := msg.SenderName
		if name == "" {
			name = msg.SenderID
		}
		m.appendLine(chatLine{name: name, text: msg.Text, at: msg.Timestamp})
		return m, m.waitMessage()

	case typingMsg:
		m.partnerTyping = msg.IsTyping
		m.partnerSeq++
		if !msg.IsTyping {
			return m, m.waitTyping()
		}
		seq := m.partnerSeq
		return m, tea.Batch(m.waitTyping(), tea.Tick(PartnerTypingTimeout, func(time.Time) tea.Msg {
			return partnerStale{seq: seq}
		}))

	case partnerStale:
		if msg.seq == m.partnerSeq {
			m.partnerTyping = false
		}
		return m, nil

	case feedClosed:
		m.closed = true
		return m, tea.Quit

	case emitFailed:
		m.err = msg.err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// keystroke announces typing on the first key of a burst, again once the
// burst outlasts TypingTimeout, and rearms the timeout.
func (m *ChatModel) keystroke() tea.Cmd {
	var cmds []tea.Cmd
	if now := m.now(); !m.typing || now.Sub(m.announcedAt) >= TypingTimeout {
		m.typing = true
		m.announcedAt = now
		cmds = append(cmds, m.emit(protocol.Typing{RoomID: m.room, IsTyping: true}))
	}
	m.typingSeq++
	seq := m.typingSeq
	cmds = append(cmds, tea.Tick(TypingTimeout, func(time.Time) tea.Msg {
		return typingTimeout{seq: seq}
	}))
	return tea.Batch(cmds...)
}

func (m *ChatModel) send() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()

	at := m.now()
	stop := m.stopTyping()
	m.appendLine(chatLine{own: true, name: m.name, text: text, at: at})
	return tea.Batch(stop, m.emit(protocol.ChatMessage{
		RoomID:     m.room,
		SenderID:   m.me,
		SenderName: m.name,
		Text:       text,
		Timestamp:  at,
		ID:         m.newID(),
	}))
}

func (m *ChatModel) appendLine(l chatLine) {
	m.lines = append(m.lines, l)
	if len(m.lines) > chatHistory {
		m.lines = m.lines[len(m.lines)-chatHistory:]
	}
}

// Err returns the error that ended the session, if any.
func (m *ChatModel) Err() error {
	return m.err
}

// Closed reports whether the relay connection ended under the model.
func (m *ChatModel) Closed() bool {
	return m.closed
}

func (m *ChatModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s %s", IconChat, m.room)))
	b.WriteString("\n")

	if len(m.lines) == 0 {
		b.WriteString(MutedStyle.Render("No messages yet."))
		b.WriteString("\n")
	}
	for _, l := range m.lines {
		style := PartnerNameStyle
		if l.own {
			style = OwnNameStyle
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			TimestampStyle.Render(l.at.Local().Format("15:04")),
			style.Render(l.name+":"),
			l.text,
		)
	}

	b.WriteString("\n")
	if m.partnerTyping {
		b.WriteString(SubtitleStyle.Render("partner is typing..."))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("enter to send, esc to quit"))
	return b.String()
}
