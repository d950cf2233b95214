package data

import (
	"context"
	"net/http"
	"time"

	"access-service/internal/biz"
	"access-service/internal/conf"
	accessErrors "access-service/internal/errors"

	"github.com/bwmarrin/discordgo"
	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// NewDiscordSession 创建 Discord 会话（REST 私信与网关指令共用）
// token 为空时依然返回会话，发送时报错，不阻止服务启动
func NewDiscordSession(c *conf.Bootstrap) (*discordgo.Session, error) {
	var dc conf.Discord
	if c.Discord != nil {
		dc = *c.Discord
	}

	session, err := discordgo.New("Bot " + dc.BotToken)
	if err != nil {
		return nil, err
	}
	session.Client = &http.Client{Timeout: conf.ParseDuration(dc.Timeout, 10*time.Second)}
	session.Identify.Intents = discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	return session, nil
}

// discordNotifier 通过机器人私信通知买家（实现 biz.Notifier）
type discordNotifier struct {
	session *discordgo.Session
	token   string
	log     *log.Helper
}

// NewDiscordNotifier 创建 Discord 通知器
func NewDiscordNotifier(c *conf.Bootstrap, session *discordgo.Session, logger log.Logger) biz.Notifier {
	n := &discordNotifier{
		session: session,
		log:     log.NewHelper(logger),
	}
	if c.Discord != nil {
		n.token = c.Discord.BotToken
	}
	if n.token == "" {
		n.log.Warn("discord bot token is empty, notifications will fail")
	}
	return n
}

// Deliver 打开私信频道并发送消息
func (n *discordNotifier) Deliver(ctx context.Context, recipientID, content string) error {
	if n.token == "" || n.session == nil {
		return pkgErrors.NewBizErrorWithLang(ctx, accessErrors.ErrCodeDiscordTokenMissing)
	}

	ch, err := n.session.UserChannelCreate(recipientID, discordgo.WithContext(ctx))
	if err != nil {
		n.log.Errorf("open dm channel failed: recipient_id=%s, error=%v", recipientID, err)
		return pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodeDiscordSendFailed)
	}
	if _, err := n.session.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx)); err != nil {
		n.log.Errorf("send dm failed: recipient_id=%s, channel_id=%s, error=%v", recipientID, ch.ID, err)
		return pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodeDiscordSendFailed)
	}
	return nil
}
