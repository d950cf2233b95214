package biz

import "github.com/bwmarrin/snowflake"

// ValidRecipientID 校验 Discord 用户 ID（snowflake，15-20 位十进制数字）
func ValidRecipientID(id string) bool {
	if len(id) < 15 || len(id) > 20 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	sf, err := snowflake.ParseString(id)
	return err == nil && sf.Int64() > 0
}
