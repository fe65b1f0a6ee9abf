package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/mikey/mail-risk-analyzer/internal/core"
)

// Parse builds a message from raw RFC 5322 bytes. Only text/plain, text/html
// and attachment parts are distinguished.
func Parse(id string, raw []byte) (*core.Message, error) {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}
	defer reader.Close()

	msg := &core.Message{
		ID:      id,
		Headers: headerMap(reader.Header),
	}

	if subject, err := reader.Header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = reader.Header.Get("Subject")
	}
	if from, err := reader.Header.Text("From"); err == nil {
		msg.From = from
	} else {
		msg.From = reader.Header.Get("From")
	}

	var bodies []string
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}
		if part == nil {
			continue
		}

		switch header := part.Header.(type) {
		case *mail.InlineHeader:
			mediaType, _, _ := header.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case mediaType == "" || strings.HasPrefix(mediaType, "text/plain"):
				bodies = append(bodies, string(body))
			case strings.HasPrefix(mediaType, "text/html"):
				msg.HTMLParts = append(msg.HTMLParts, string(body))
			}
		case *mail.AttachmentHeader:
			filename, _ := header.Filename()
			contentType, _, _ := header.ContentType()
			msg.Attachments = append(msg.Attachments, core.Attachment{
				Filename:    filename,
				ContentType: contentType,
			})
		}
	}
	msg.Body = strings.Join(bodies, "\n")

	return msg, nil
}

func headerMap(h mail.Header) map[string][]string {
	out := make(map[string][]string)
	fields := h.Fields()
	for fields.Next() {
		key := fields.Key()
		out[key] = append(out[key], fields.Value())
	}
	return out
}
