// Package discord connects the pipeline to a Discord bot account. The bot
// answers only when mentioned and renders marker payloads as embeds,
// attachments and image links.
package discord

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"spritebot/pipeline"
)

const (
	EmptyMentionReply = "Yes? How may I enlighten you? 🔮"
	SlowNotice        = "🎨 Generating your sprite... This might take a minute for larger images. Please wait! ⏳"
)

// session is the subset of *discordgo.Session the bot uses.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Handler turns a chat message into a reply.
type Handler interface {
	Handle(ctx context.Context, req pipeline.Request) pipeline.Reply
}

type Config struct {
	Token        string
	NotifyAfter  time.Duration
	ErrorMessage string
	Logger       *slog.Logger
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("discord: token is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

type Bot struct {
	cfg     Config
	handler Handler
	session session
	logger  *slog.Logger

	mu     sync.RWMutex
	selfID string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, handler Handler) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bot{
		cfg:     cfg,
		handler: handler,
		logger:  cfg.Logger.With("component", "discord"),
		ctx:     context.Background(),
	}, nil
}

// Start opens the gateway connection. Messages are handled until Stop.
func (b *Bot) Start(ctx context.Context) error {
	if b.session == nil {
		dg, err := discordgo.New("Bot " + b.cfg.Token)
		if err != nil {
			return err
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages |
			discordgo.IntentsMessageContent
		b.session = dg
	}

	b.mu.Lock()
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handleMessageCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	b.logger.Info("discord session opened")
	return nil
}

// Stop waits for in-flight messages, bounded by ctx, then closes the
// session.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("stop timeout, closing with messages in flight")
	}
	if cancel != nil {
		cancel()
	}

	if b.session == nil {
		return nil
	}
	return b.session.Close()
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	b.mu.Lock()
	b.selfID = r.User.ID
	b.mu.Unlock()
	b.logger.Info("logged in", "user", r.User.Username, "id", r.User.ID, "guilds", len(r.Guilds))
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	b.onMessage(m.Message)
}

func (b *Bot) botID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selfID
}

func (b *Bot) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

func mentions(m *discordgo.Message, id string) bool {
	for _, u := range m.Mentions {
		if u != nil && u.ID == id {
			return true
		}
	}
	return false
}

// stripMention removes the first mention of id from content.
func stripMention(content, id string) string {
	for _, form := range []string{"<@" + id + ">", "<@!" + id + ">"} {
		if strings.Contains(content, form) {
			content = strings.Replace(content, form, "", 1)
			break
		}
	}
	return strings.TrimSpace(content)
}

func (b *Bot) onMessage(m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	self := b.botID()
	if self == "" || !mentions(m, self) {
		return
	}

	b.wg.Add(1)
	defer b.wg.Done()

	ref := m.Reference()
	text := stripMention(m.Content, self)
	if text == "" {
		b.reply(m.ChannelID, EmptyMentionReply, ref)
		return
	}

	logger := b.logger.With("channel", m.ChannelID, "user", m.Author.ID)
	logger.Info("message received", "username", m.Author.Username, "length", len(text))

	if err := b.session.ChannelTyping(m.ChannelID); err != nil {
		logger.Debug("typing indicator failed", "error", err)
	}

	var (
		noticeMu sync.Mutex
		noticeID string
	)
	notice := pipeline.After(b.cfg.NotifyAfter, func() {
		sent, err := b.session.ChannelMessageSendReply(m.ChannelID, SlowNotice, ref)
		if err != nil {
			logger.Warn("failed to send progress notice", "error", err)
			return
		}
		noticeMu.Lock()
		noticeID = sent.ID
		noticeMu.Unlock()
	})

	reply := b.handler.Handle(b.context(), pipeline.Request{
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Text:      text,
	})

	if notice.Cancel() {
		noticeMu.Lock()
		id := noticeID
		noticeMu.Unlock()
		if id != "" {
			if err := b.session.ChannelMessageDelete(m.ChannelID, id); err != nil {
				logger.Warn("failed to delete progress notice", "error", err)
			}
		}
	}

	if err := b.deliver(m.ChannelID, ref, reply.Text); err != nil {
		logger.Error("failed to deliver reply", "request_id", reply.RequestID, "error", err)
		b.reply(m.ChannelID, b.cfg.ErrorMessage, ref)
		return
	}
	logger.Info("reply sent", "request_id", reply.RequestID, "tool", reply.Tool)
}

func (b *Bot) reply(channelID, content string, ref *discordgo.MessageReference) *discordgo.Message {
	msg, err := b.session.ChannelMessageSendReply(channelID, content, ref)
	if err != nil {
		b.logger.Error("failed to send reply", "channel", channelID, "error", err)
		return nil
	}
	return msg
}
