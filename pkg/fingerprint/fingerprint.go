package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易内容指纹
// ============================================================================
//
// 【为什么用内容指纹去重？】
//
// 银行对账单没有全局主键：同一笔交易可能被多次导出（不同文件、不同格式），
// 参照号（FITID）又不是所有银行都提供。因此用交易的语义内容推导一个
// 确定性的指纹，配合数据库唯一索引实现幂等导入。
//
// 【指纹算法】
//
//   sha256("日期|金额|摘要|参照号") 取前 128 位（32 个 hex 字符）
//
//   - 日期：UTC 日历日，格式 2006-01-02，不含时间部分
//   - 金额：精确十进制字符串，无本地化格式、无舍入
//   - 摘要：原始字符串，不做任何规范化（大小写/空白不同即视为不同交易）
//   - 参照号：缺失时取空字符串
//
// 日期、金额、摘要、参照号全部相同的两笔交易无法区分 —— 这是有意为之，
// 它就是去重层对"同一笔交易"的定义。
// ============================================================================

const hashLength = 32 // sha256 hex 前 32 位（128 bit）

// Generate 生成交易指纹
// 纯函数：相同语义输入任何时刻都产生相同输出
func Generate(date time.Time, amount decimal.Decimal, content string, referenceNumber string) string {
	dateStr := date.UTC().Format("2006-01-02")
	data := fmt.Sprintf("%s|%s|%s|%s", dateStr, amount.String(), content, referenceNumber)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:hashLength]
}
