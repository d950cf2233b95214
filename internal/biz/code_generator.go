package biz

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"

	"access-service/internal/constants"

	"github.com/google/uuid"
)

const redemptionAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator 生成订单号和兑换码，结果不可预测且实际不会重复
type CodeGenerator interface {
	NewOrderID() string
	NewRedemptionCode() string
}

type randomCodeGenerator struct{}

// NewCodeGenerator 创建基于 crypto/rand 的生成器
func NewCodeGenerator() CodeGenerator {
	return randomCodeGenerator{}
}

// NewOrderID ORD- + 32 位大写十六进制（UUIDv4，122 bit 随机）
func (randomCodeGenerator) NewOrderID() string {
	id := uuid.New()
	return constants.OrderIDPrefix + strings.ToUpper(hex.EncodeToString(id[:]))
}

// NewRedemptionCode ABO- + 16 位 [A-Z0-9]
func (randomCodeGenerator) NewRedemptionCode() string {
	max := big.NewInt(int64(len(redemptionAlphabet)))
	var b strings.Builder
	b.Grow(len(constants.RedemptionCodePrefix) + constants.RedemptionCodeLength)
	b.WriteString(constants.RedemptionCodePrefix)
	for i := 0; i < constants.RedemptionCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		b.WriteByte(redemptionAlphabet[n.Int64()])
	}
	return b.String()
}
