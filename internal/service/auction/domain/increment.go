package domain

import "github.com/shopspring/decimal"

var (
	defaultManualIncrement = decimal.NewFromInt(1)
	minAutomaticIncrement  = decimal.RequireFromString("0.01")
)

// ManualIncrement 返回手动出价的最小加价幅度，未设置时为 1.0
func ManualIncrement(cfg AuctionConfig) decimal.Decimal {
	if cfg.ManualIncrement.IsPositive() {
		return cfg.ManualIncrement
	}
	return defaultManualIncrement
}

// AutomaticIncrement 返回代理出价在 currentBid 下的加价幅度。
// 规则可能在两次出价之间被修改，所以每次都重新计算。
func AutomaticIncrement(cfg AuctionConfig, currentBid decimal.Decimal) decimal.Decimal {
	if cfg.IncrementMode == IncrementAdvanced {
		for _, rule := range cfg.IncrementRules {
			if rule.Matches(currentBid) {
				return decimal.Max(rule.Increment, minAutomaticIncrement)
			}
		}
	}
	if cfg.AutomaticIncrementValue.IsPositive() {
		return cfg.AutomaticIncrementValue
	}
	return ManualIncrement(cfg)
}

// MinimumRequired 计算下一次出价的最低金额
func MinimumRequired(cfg AuctionConfig, state RuntimeState) decimal.Decimal {
	manual := ManualIncrement(cfg)
	minimumFirst := decimal.Max(cfg.StartPrice, manual)
	if !state.HasWinner() {
		return minimumFirst
	}
	return decimal.Max(state.CurrentBid.Add(manual), minimumFirst)
}
