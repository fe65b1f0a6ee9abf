package imapstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/mailparse"
	"go.uber.org/zap"
)

// Defaults for the mailbox connection
const (
	DefaultMailbox = "INBOX"
	DefaultTimeout = 30 * time.Second
)

// Config holds the IMAP connection settings
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Mailbox            string
	TLS                bool
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Transport implements core.MailTransport over IMAP. Every call opens its own
// session, so a Transport is safe for concurrent use.
type Transport struct {
	cfg    Config
	logger *zap.Logger
}

// NewTransport creates a new IMAP transport
func NewTransport(cfg Config, logger *zap.Logger) *Transport {
	if cfg.Mailbox == "" {
		cfg.Mailbox = DefaultMailbox
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Transport{
		cfg:    cfg,
		logger: logger.With(zap.String("server", cfg.Host), zap.String("mailbox", cfg.Mailbox)),
	}
}

func (t *Transport) dial() (*client.Client, error) {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	dialer := &net.Dialer{Timeout: t.cfg.Timeout}

	var (
		c   *client.Client
		err error
	)
	if t.cfg.TLS {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{
			ServerName:         t.cfg.Host,
			InsecureSkipVerify: t.cfg.InsecureSkipVerify,
		})
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("could not dial to imap: %w", err)
	}
	c.Timeout = t.cfg.Timeout
	c.ErrorLog = zap.NewStdLog(t.logger)

	if err := c.Login(t.cfg.Username, t.cfg.Password); err != nil {
		_ = c.Terminate()
		return nil, fmt.Errorf("could not login to imap: %w", err)
	}
	return c, nil
}

// session runs fn on a logged in connection. The connection is torn down if
// ctx ends before fn returns.
func (t *Transport) session(ctx context.Context, fn func(c *client.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := t.dial()
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Terminate()
		case <-stop:
		}
	}()

	fnErr := fn(c)
	if err := c.Logout(); err != nil && ctx.Err() == nil {
		t.logger.Debug("IMAP logout failed", zap.Error(err))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fnErr
}

func (t *Transport) selectMailbox(c *client.Client, readOnly bool) (*imap.MailboxStatus, error) {
	status, err := c.Select(t.cfg.Mailbox, readOnly)
	if err != nil {
		return nil, fmt.Errorf("could not select folder: %w", err)
	}
	return status, nil
}

// FetchLatest returns up to limit messages ordered by descending UID
func (t *Transport) FetchLatest(ctx context.Context, limit int) ([]*core.Message, error) {
	var messages []*core.Message
	err := t.session(ctx, func(c *client.Client) error {
		status, err := t.selectMailbox(c, true)
		if err != nil {
			return err
		}
		if status.Messages == 0 {
			return nil
		}

		uids, err := c.UidSearch(imap.NewSearchCriteria())
		if err != nil {
			return fmt.Errorf("could not list folder: %w", err)
		}
		sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
		if len(uids) > limit {
			uids = uids[:limit]
		}

		raws, err := fetchRaw(c, uids)
		if err != nil {
			return err
		}
		for _, uid := range uids {
			raw, ok := raws[uid]
			if !ok {
				continue
			}
			msg, err := mailparse.Parse(formatUID(uid), raw.body)
			if err != nil {
				t.logger.Warn("Unparsable message", zap.Uint32("uid", uid), zap.Error(err))
				msg = &core.Message{ID: formatUID(uid), Err: err}
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.logger.Debug("Fetched messages", zap.Int("count", len(messages)))
	return messages, nil
}

// FetchMessage returns the message with the given UID
func (t *Transport) FetchMessage(ctx context.Context, id string) (*core.Message, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	var msg *core.Message
	err = t.session(ctx, func(c *client.Client) error {
		if _, err := t.selectMailbox(c, true); err != nil {
			return err
		}
		raws, err := fetchRaw(c, []uint32{uid})
		if err != nil {
			return err
		}
		raw, ok := raws[uid]
		if !ok {
			return core.ErrMessageNotFound
		}
		msg, err = mailparse.Parse(id, raw.body)
		return err
	})
	return msg, err
}

// MessageCount returns the number of messages in the mailbox
func (t *Transport) MessageCount(ctx context.Context) (int, error) {
	var count int
	err := t.session(ctx, func(c *client.Client) error {
		status, err := t.selectMailbox(c, true)
		if err != nil {
			return err
		}
		count = int(status.Messages)
		return nil
	})
	return count, err
}

// ModifySubject rewrites the subject by appending a modified copy of the
// message and expunging the original. The new copy gets a new UID.
func (t *Transport) ModifySubject(ctx context.Context, id string, subject string) (bool, error) {
	uid, err := parseUID(id)
	if err != nil {
		return false, err
	}

	err = t.session(ctx, func(c *client.Client) error {
		if _, err := t.selectMailbox(c, false); err != nil {
			return err
		}
		raws, err := fetchRaw(c, []uint32{uid})
		if err != nil {
			return err
		}
		raw, ok := raws[uid]
		if !ok {
			return core.ErrMessageNotFound
		}

		rewritten, err := mailparse.ReplaceSubject(raw.body, subject)
		if err != nil {
			return err
		}
		if err := c.Append(t.cfg.Mailbox, keepFlags(raw.flags), time.Now(), bytes.NewReader(rewritten)); err != nil {
			return fmt.Errorf("could not append: %w", err)
		}

		seqset := new(imap.SeqSet)
		seqset.AddNum(uid)
		flags := []interface{}{imap.DeletedFlag}
		if err := c.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			return fmt.Errorf("could not set delete flag: %w", err)
		}
		if err := c.Expunge(nil); err != nil {
			return fmt.Errorf("could not expunge mails: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	t.logger.Info("Subject modified", zap.String("uid", id))
	return true, nil
}

// Ping opens and closes a session
func (t *Transport) Ping(ctx context.Context) error {
	return t.session(ctx, func(c *client.Client) error {
		return c.Noop()
	})
}

type rawMessage struct {
	body  []byte
	flags []string
}

func fetchRaw(c *client.Client, uids []uint32) (map[uint32]rawMessage, error) {
	result := make(map[uint32]rawMessage, len(uids))
	if len(uids) == 0 {
		return result, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchFlags, imap.FetchUid}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var readErr error
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		body, err := io.ReadAll(r)
		if err != nil && readErr == nil {
			readErr = fmt.Errorf("could not read mail body: %w", err)
			continue
		}
		result[msg.Uid] = rawMessage{body: body, flags: msg.Flags}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("could not fetch mails: %w", err)
	}
	if readErr != nil {
		return nil, readErr
	}
	return result, nil
}

// keepFlags drops the flags a server assigns itself
func keepFlags(flags []string) []string {
	var out []string
	for _, f := range flags {
		if f == imap.RecentFlag || f == imap.DeletedFlag {
			continue
		}
		out = append(out, f)
	}
	return out
}

func parseUID(id string) (uint32, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return 0, &core.ValidationError{Field: "uid", Reason: fmt.Sprintf("%q is not a message UID", id)}
	}
	return uint32(uid), nil
}

func formatUID(uid uint32) string {
	return strconv.FormatUint(uint64(uid), 10)
}

var _ core.MailTransport = (*Transport)(nil)
