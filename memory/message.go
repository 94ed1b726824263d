package memory

import (
	"strings"
	"time"
	"unicode"
)

// Message is one chat message as seen by agents.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id,omitempty"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// ReplyToAuthor is the author of the message replied to, if known.
	ReplyToAuthor string `json:"reply_to_author,omitempty"`

	// QuotedAuthors are authors of embedded or quoted messages.
	QuotedAuthors []string `json:"quoted_authors,omitempty"`
}

// Text returns the message content.
func (m *Message) Text() string { return m.Content }

// ReferencedAuthors returns the replied-to author followed by quoted authors.
func (m *Message) ReferencedAuthors() []string {
	out := make([]string, 0, len(m.QuotedAuthors)+1)
	if m.ReplyToAuthor != "" {
		out = append(out, m.ReplyToAuthor)
	}
	return append(out, m.QuotedAuthors...)
}

// IsReply reports whether the message replies to another one.
func (m *Message) IsReply() bool { return m.ReplyTo != "" }

// String renders the message as an IRC style script line: "<Author>: content".
func (m *Message) String() string {
	return "<" + DisplayName(m.Author) + ">: " + m.Content
}

// DisplayName reduces name to letters, digits and single spaces so it can be
// used inside a script speaker marker.
func DisplayName(name string) string {
	var b strings.Builder
	space := false
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
