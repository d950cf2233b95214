package service

import (
	"context"
	"strings"

	"access-service/internal/biz"
	"access-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

// BotCommandService Discord 机器人文本指令
type BotCommandService struct {
	uc  *biz.OrderUseCase
	log *log.Helper
}

// NewBotCommandService 创建 BotCommandService
func NewBotCommandService(uc *biz.OrderUseCase, logger log.Logger) *BotCommandService {
	return &BotCommandService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// HandleCommand 返回指令的回复内容；不是已知指令时 handled 为 false
func (s *BotCommandService) HandleCommand(ctx context.Context, authorID, content string) (reply string, handled bool, err error) {
	fields := strings.Fields(content)
	if len(fields) == 0 || !strings.EqualFold(fields[0], constants.BotCommandLast) {
		return "", false, nil
	}

	reply, err = s.uc.LastCodeReply(ctx, authorID)
	if err != nil {
		s.log.Errorf("LastCodeReply failed: author_id=%s, error=%v", authorID, err)
		return "", true, err
	}
	return reply, true, nil
}
