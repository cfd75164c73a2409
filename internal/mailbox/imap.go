package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"deadlineTracker/internal/logger"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

var ErrMissingCredentials = errors.New("не заданы IMAP_USERNAME или IMAP_PASSWORD")

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	Mailbox     string
	Days        int
	MaxMessages int
	DialTimeout time.Duration
}

// IMAPSource читает непрочитанные письма за последние дни
type IMAPSource struct {
	cfg Config
	now func() time.Time
}

func NewIMAPSource(cfg Config) *IMAPSource {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Days <= 0 {
		cfg.Days = 7
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 50
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	return &IMAPSource{cfg: cfg, now: time.Now}
}

func (s *IMAPSource) Validate() error {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return ErrMissingCredentials
	}
	if s.cfg.Host == "" {
		return errors.New("не задан IMAP-сервер")
	}
	return nil
}

// Fetch возвращает письма от новых к старым, не больше MaxMessages
func (s *IMAPSource) Fetch(ctx context.Context) ([]Message, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
	c, err := client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		logger.Error("Mail: Не удалось подключиться", err, zap.String("addr", addr))
		return nil, fmt.Errorf("подключение к %s: %w", addr, err)
	}
	c.Timeout = s.cfg.DialTimeout
	defer c.Logout()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		logger.Error("Mail: Ошибка авторизации", err)
		return nil, fmt.Errorf("авторизация: %w", err)
	}

	if _, err := c.Select(s.cfg.Mailbox, false); err != nil {
		return nil, fmt.Errorf("выбор ящика %s: %w", s.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = s.now().AddDate(0, 0, -s.cfg.Days)

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("поиск писем: %w", err)
	}
	uids = newestFirst(uids, s.cfg.MaxMessages)
	if len(uids) == 0 {
		logger.Info("Mail: Новых писем нет")
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	fetched := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, fetched)
	}()

	var messages []Message
	for raw := range fetched {
		body := raw.GetBody(section)
		if body == nil {
			continue
		}
		msg, ok, err := ParseMessage(body)
		if err != nil {
			logger.Warn("Mail: Письмо не разобрано", zap.Uint32("uid", raw.Uid), zap.Error(err))
			continue
		}
		if !ok {
			logger.Debug("Mail: Письмо без текста пропущено", zap.Uint32("uid", raw.Uid))
			continue
		}
		msg.UID = raw.Uid
		messages = append(messages, msg)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("загрузка писем: %w", err)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].UID > messages[j].UID
	})
	logger.Info("Mail: Письма получены", zap.Int("count", len(messages)))
	return messages, nil
}

// newestFirst сортирует UID по убыванию и обрезает до limit
func newestFirst(uids []uint32, limit int) []uint32 {
	sorted := append([]uint32(nil), uids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
