package mailsync

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/kzcare/crm/pkg/observability"
)

// Config holds the mailbox credentials.
type Config struct {
	Server   string // host:port, TLS
	Username string
	Password string
	Mailbox  string // defaults to INBOX
}

// Session is one logged-in IMAP connection. It is owned by a single
// job run and is not safe for concurrent use.
type Session struct {
	client  *client.Client
	mailbox string
}

// Dial connects, logs in and selects the mailbox.
func Dial(cfg Config) (*Session, error) {
	c, err := client.DialTLS(cfg.Server, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Server, err)
	}

	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("login failed: %w", err)
	}

	mailbox := cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, true); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to select %s: %w", mailbox, err)
	}

	return &Session{client: c, mailbox: mailbox}, nil
}

// SearchDay returns the sequence numbers of messages received on the
// given day.
func (s *Session) SearchDay(day time.Time) ([]uint32, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	criteria := imap.NewSearchCriteria()
	criteria.Since = start
	criteria.Before = start.AddDate(0, 0, 1)

	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return ids, nil
}

// FetchMessage downloads one message and returns its message id and the
// text/plain body.
func (s *Session) FetchMessage(seqNum uint32) (messageID, body string, err error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNum)

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return "", "", fmt.Errorf("fetch failed: %w", err)
	}
	if msg == nil {
		return "", "", fmt.Errorf("message %d not returned", seqNum)
	}

	r := msg.GetBody(section)
	if r == nil {
		return "", "", fmt.Errorf("message %d has no body", seqNum)
	}
	return readMessage(r)
}

// Logout closes the connection. Safe to defer; errors at logout are
// returned for logging but the session is gone either way.
func (s *Session) Logout() error {
	return s.client.Logout()
}

// readMessage extracts the Message-Id header and the first text/plain
// part of a raw RFC822 message. Mailbox content is untrusted, so a
// panic while decoding becomes an error for the skip counter.
func readMessage(r io.Reader) (messageID, body string, err error) {
	defer func() {
		if rerr := observability.MustRecover(recover()); rerr != nil {
			messageID, body, err = "", "", rerr
		}
	}()

	msg, err := mail.ReadMessage(r)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse message: %w", err)
	}
	messageID = msg.Header.Get("Message-Id")

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		// No or malformed content type: treat the whole body as text.
		data, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return "", "", fmt.Errorf("failed to read body: %w", readErr)
		}
		return messageID, string(data), nil
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		data, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", "", fmt.Errorf("failed to read body: %w", err)
		}
		return messageID, string(data), nil
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("failed to read part: %w", err)
		}

		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if partType == "text/plain" {
			data, err := io.ReadAll(part)
			if err != nil {
				return "", "", fmt.Errorf("failed to read text part: %w", err)
			}
			return messageID, string(data), nil
		}
	}
	return messageID, "", fmt.Errorf("no text/plain part found")
}
