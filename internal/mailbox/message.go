package mailbox

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Message - тема и текст письма, больше пайплайну ничего не нужно
type Message struct {
	UID     uint32
	Subject string
	Body    string
	Date    time.Time
}

// ParseMessage достаёт тему и первую text/plain часть.
// ok=false, если текстовой части нет.
func ParseMessage(r io.Reader) (Message, bool, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return Message{}, false, fmt.Errorf("чтение письма: %w", err)
	}
	defer mr.Close()

	var msg Message
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = mr.Header.Get("Subject")
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return msg, false, fmt.Errorf("чтение части письма: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := h.ContentType()
		if err != nil || contentType != "text/plain" {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			return msg, false, fmt.Errorf("чтение текста письма: %w", err)
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			continue
		}
		msg.Body = text
		return msg, true, nil
	}

	return msg, false, nil
}
