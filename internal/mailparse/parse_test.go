package mailparse

import (
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

const multipartMessage = `From: "PayPal Security" <security@paypa1.test>
To: victim@example.com
Subject: =?UTF-8?Q?Urgent:_verify_your_account?=
Received-SPF: fail
Authentication-Results: mx.example.com; dkim=none; dmarc=fail
Date: Sat, 15 Jun 2024 10:00:00 +0000
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

Please verify at http://paypa1.test/login
--inner
Content-Type: text/html; charset=utf-8

<p>Please <img src="http://track.test/p.gif" width="1" height="1"></p>
--inner--
--outer
Content-Type: application/x-msdownload
Content-Disposition: attachment; filename="invoice.exe"
Content-Transfer-Encoding: base64

TVqQAAMAAAAEAAAA
--outer--
`

func TestParse_Multipart(t *testing.T) {
	msg, err := Parse("42", crlf(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, "42", msg.ID)
	assert.Equal(t, "Urgent: verify your account", msg.Subject)
	assert.Contains(t, msg.From, "security@paypa1.test")
	assert.Equal(t, "fail", msg.Header("received-spf"))
	assert.Contains(t, msg.Header("Authentication-Results"), "dmarc=fail")

	assert.Contains(t, msg.Body, "http://paypa1.test/login")
	require.Len(t, msg.HTMLParts, 1)
	assert.Contains(t, msg.HTMLParts[0], "track.test/p.gif")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "invoice.exe", msg.Attachments[0].Filename)
	assert.Equal(t, "application/x-msdownload", msg.Attachments[0].ContentType)
}

func TestParse_SinglePart(t *testing.T) {
	raw := crlf("From: a@example.com\nSubject: hello\n\nplain body\n")

	msg, err := Parse("1", raw)
	require.NoError(t, err)

	assert.Equal(t, "hello", msg.Subject)
	assert.Equal(t, "plain body", strings.TrimSpace(msg.Body))
	assert.Empty(t, msg.HTMLParts)
	assert.Empty(t, msg.Attachments)
}

func TestParse_UnknownTransferEncoding(t *testing.T) {
	raw := crlf("From: a@example.com\nSubject: hello\nContent-Transfer-Encoding: x-scrambled\n\n???\n")

	_, err := Parse("1", raw)
	assert.Error(t, err)
}

func TestParse_RepeatedHeaders(t *testing.T) {
	raw := crlf("Received: from a\nReceived: from b\nSubject: x\n\nbody\n")

	msg, err := Parse("1", raw)
	require.NoError(t, err)

	assert.Len(t, msg.HeaderValues("Received"), 2)
}

func TestReplaceSubject(t *testing.T) {
	raw := crlf("From: a@example.com\nSubject: Invoice\n\nbody line\n")

	out, err := ReplaceSubject(raw, "[Warning] Invoice")
	require.NoError(t, err)

	msg, err := Parse("1", out)
	require.NoError(t, err)
	assert.Equal(t, "[Warning] Invoice", msg.Subject)
	assert.Equal(t, "a@example.com", msg.Header("From"))
	assert.Contains(t, string(out), "body line")
}

func TestReplaceSubject_EncodesNonASCII(t *testing.T) {
	raw := crlf("Subject: Invoice\n\nbody\n")

	out, err := ReplaceSubject(raw, "[⚠️ High risk] Invoice")
	require.NoError(t, err)
	assert.NotContains(t, string(out), "⚠️")

	msg, err := Parse("1", out)
	require.NoError(t, err)
	assert.Equal(t, "[⚠️ High risk] Invoice", msg.Subject)
}

func TestRewriteHeader_AddsFieldsAndKeepsBody(t *testing.T) {
	raw := crlf(multipartMessage)

	out, err := RewriteHeader(raw, func(h *mail.Header) {
		h.Set("X-Risk-Score", "85")
		h.Del("Received-SPF")
	})
	require.NoError(t, err)

	msg, err := Parse("1", out)
	require.NoError(t, err)
	assert.Equal(t, "85", msg.Header("X-Risk-Score"))
	assert.Empty(t, msg.HeaderValues("Received-SPF"))
	assert.Equal(t, "Urgent: verify your account", msg.Subject)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "invoice.exe", msg.Attachments[0].Filename)
}

func TestRewriteHeader_MissingHeader(t *testing.T) {
	_, err := RewriteHeader(crlf("no colon here\n\nbody\n"), func(*mail.Header) {})
	assert.Error(t, err)
}
