package mailparse

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

// RewriteHeader returns raw with its header passed through edit. The body is
// copied untouched.
func RewriteHeader(raw []byte, edit func(h *mail.Header)) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}

	header := mail.Header{Header: message.Header{Header: h}}
	edit(&header)

	var buf bytes.Buffer
	if err := textproto.WriteHeader(&buf, header.Header.Header); err != nil {
		return nil, fmt.Errorf("failed to write message header: %w", err)
	}
	if _, err := io.Copy(&buf, br); err != nil {
		return nil, fmt.Errorf("failed to copy message body: %w", err)
	}
	return buf.Bytes(), nil
}

// ReplaceSubject returns raw with its Subject header replaced. Non-ASCII
// subjects are written as encoded words.
func ReplaceSubject(raw []byte, subject string) ([]byte, error) {
	return RewriteHeader(raw, func(h *mail.Header) {
		h.SetSubject(subject)
	})
}
