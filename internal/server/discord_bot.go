package server

import (
	"context"
	"time"

	"access-service/internal/biz"
	"access-service/internal/conf"
	"access-service/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/go-kratos/kratos/v2/log"
)

// 单条指令的处理超时
const botCommandTimeout = 15 * time.Second

// DiscordBotServer 监听 Discord 网关消息，处理 !last 等文本指令
type DiscordBotServer struct {
	session  *discordgo.Session
	commands *service.BotCommandService
	notifier biz.Notifier
	log      *log.Helper
	enabled  bool

	removeHandler func()
}

// NewDiscordBotServer creates the bot command listener
func NewDiscordBotServer(c *conf.Bootstrap, session *discordgo.Session, commands *service.BotCommandService, notifier biz.Notifier, logger log.Logger) *DiscordBotServer {
	enabled := c.Discord != nil && c.Discord.CommandsEnabled && c.Discord.BotToken != ""
	return &DiscordBotServer{
		session:  session,
		commands: commands,
		notifier: notifier,
		log:      log.NewHelper(logger),
		enabled:  enabled,
	}
}

// Start opens the gateway session
func (s *DiscordBotServer) Start(ctx context.Context) error {
	if !s.enabled || s.session == nil {
		s.log.Infof("DiscordBotServer is disabled, skipping startup")
		return nil
	}

	s.removeHandler = s.session.AddHandler(s.onMessageCreate)
	if err := s.session.Open(); err != nil {
		s.log.Errorf("Failed to open discord gateway session: %v", err)
		// 不返回错误，机器人指令不可用不影响下单与 webhook
		return nil
	}
	s.log.Info("DiscordBotServer started")
	return nil
}

// Stop closes the gateway session
func (s *DiscordBotServer) Stop(ctx context.Context) error {
	if !s.enabled || s.session == nil {
		return nil
	}
	s.log.Info("Stopping DiscordBotServer")
	if s.removeHandler != nil {
		s.removeHandler()
	}
	return s.session.Close()
}

func (s *DiscordBotServer) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	s.handleMessage(m.Author.ID, m.Content)
}

// handleMessage 回复通过私信发送给指令作者
func (s *DiscordBotServer) handleMessage(authorID, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), botCommandTimeout)
	defer cancel()

	reply, handled, err := s.commands.HandleCommand(ctx, authorID, content)
	if err != nil {
		s.log.Warnf("bot command failed: author_id=%s, error=%v", authorID, err)
		return
	}
	if !handled {
		return
	}
	if err := s.notifier.Deliver(ctx, authorID, reply); err != nil {
		s.log.Warnf("bot command reply failed: author_id=%s, error=%v", authorID, err)
	}
}
