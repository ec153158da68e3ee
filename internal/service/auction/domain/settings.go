package domain

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawSettings 是商品上保存的原始拍卖设置，所有字段都是历史数据里的字符串。
type RawSettings struct {
	ProductID               string
	Enabled                 string
	StartPrice              string
	BidIncrement            string
	ReservePrice            string
	BuyNowEnabled           string
	BuyNowPrice             string
	Sealed                  string
	AutomaticBidding        string
	IncrementMode           string
	AutomaticIncrementValue string
	IncrementRules          string // JSON 数组: [{"from":"0","to":"100","increment":"2"}]
	StartAt                 string
	EndAt                   string
}

// ResolveOptions 控制解析时使用的时区
type ResolveOptions struct {
	// SiteLocation 是站点时区，不含时区信息的日期优先按它解析，其次按 UTC
	SiteLocation *time.Location
}

// scheduleLayouts 按顺序尝试，第一个成功的生效
var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

var (
	leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)
	unixSeconds   = regexp.MustCompile(`^\d{9,11}$`)
)

// ResolveConfig 把原始设置转换为强类型的 AuctionConfig。
// 宽松解析：无法识别的输入退化为 0、未设置或空列表，从不返回错误。
func ResolveConfig(raw RawSettings, opts ResolveOptions) AuctionConfig {
	cfg := AuctionConfig{
		ProductID:               strings.TrimSpace(raw.ProductID),
		Enabled:                 ParseFlag(raw.Enabled),
		StartPrice:              ParseAmount(raw.StartPrice),
		ManualIncrement:         ParseAmount(raw.BidIncrement),
		ReservePrice:            ParseAmount(raw.ReservePrice),
		BuyNowEnabled:           ParseFlag(raw.BuyNowEnabled),
		BuyNowPrice:             ParseAmount(raw.BuyNowPrice),
		Sealed:                  ParseFlag(raw.Sealed),
		AutomaticBiddingEnabled: ParseFlag(raw.AutomaticBidding),
		IncrementMode:           IncrementSimple,
		AutomaticIncrementValue: ParseAmount(raw.AutomaticIncrementValue),
		IncrementRules:          ParseIncrementRules(raw.IncrementRules),
	}
	if strings.EqualFold(strings.TrimSpace(raw.IncrementMode), string(IncrementAdvanced)) {
		cfg.IncrementMode = IncrementAdvanced
	}

	locations := []*time.Location{time.UTC}
	if opts.SiteLocation != nil && opts.SiteLocation != time.UTC {
		locations = []*time.Location{opts.SiteLocation, time.UTC}
	}
	cfg.StartAt = ParseSchedule(raw.StartAt, locations...)
	cfg.EndAt = ParseSchedule(raw.EndAt, locations...)
	return cfg
}

// ParseFlag 识别 yes/true/1/on（不区分大小写）
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "on":
		return true
	}
	return false
}

// ParseAmount 把金额字符串转换为非负 decimal。
// 兼容千分位和逗号小数（"1,234.50"、"1.234,50"、"12,5"），
// 只取开头的数字部分，负数或无法解析时返回 0。
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	s = strings.NewReplacer(" ", "", "\u00a0", "", "'", "", "_", "").Replace(s)
	s = normalizeSeparators(s)

	m := leadingNumber.FindString(s)
	if m == "" {
		return decimal.Zero
	}
	m = strings.TrimPrefix(strings.TrimSuffix(m, "."), "+")
	if strings.HasPrefix(m, ".") || strings.HasPrefix(m, "-.") {
		m = strings.Replace(m, ".", "0.", 1)
	}
	d, err := decimal.NewFromString(m)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// normalizeSeparators 统一为 "." 作小数点、无千分位
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma < 0:
		return s
	case lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,50
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		// 1,234.50
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1 && len(digitsAfter(s, lastComma)) != 3:
		// 12,5
		return strings.Replace(s, ",", ".", 1)
	default:
		// 1,234 或 1,234,567
		return strings.ReplaceAll(s, ",", "")
	}
}

func digitsAfter(s string, idx int) string {
	rest := s[idx+1:]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	return rest[:end]
}

// ParseSchedule 依次尝试 scheduleLayouts 和给定时区，全部失败时返回 nil。
func ParseSchedule(s string, locations ...*time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(locations) == 0 {
		locations = []*time.Location{time.UTC}
	}
	for _, layout := range scheduleLayouts {
		for _, loc := range locations {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return &t
			}
		}
	}
	if unixSeconds.MatchString(s) {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			t := time.Unix(sec, 0).UTC()
			return &t
		}
	}
	return nil
}

// lenientNumber 接受 JSON 数字、字符串或 null
type lenientNumber struct {
	set   bool
	value decimal.Decimal
}

func (n *lenientNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var s string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	} else {
		s = string(b)
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	n.set = true
	n.value = ParseAmount(s)
	return nil
}

type rawIncrementRule struct {
	From      lenientNumber `json:"from"`
	To        lenientNumber `json:"to"`
	Increment lenientNumber `json:"increment"`
}

// ParseIncrementRules 解析阶梯加价表并按 From 升序排列。
// 丢弃 increment 缺失或不为正、以及 to < from 的规则；整体格式错误时返回空列表。
func ParseIncrementRules(s string) []IncrementRule {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var raws []rawIncrementRule
	if err := json.Unmarshal([]byte(s), &raws); err != nil {
		return nil
	}

	rules := make([]IncrementRule, 0, len(raws))
	for _, r := range raws {
		if !r.Increment.set || !r.Increment.value.IsPositive() {
			continue
		}
		rule := IncrementRule{From: r.From.value, Increment: r.Increment.value}
		if r.To.set {
			if r.To.value.LessThan(rule.From) {
				continue
			}
			to := r.To.value
			rule.To = &to
		}
		rules = append(rules, rule)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].From.LessThan(rules[j].From)
	})
	return rules
}
