package domain

import "github.com/shopspring/decimal"

// ResolutionCase 标识出价落入了哪一种代理冲突分支，用于日志和指标
type ResolutionCase string

const (
	CaseFreshLead      ResolutionCase = "fresh_lead"      // 没有代理冲突，新出价直接领先
	CaseProxyRaised    ResolutionCase = "proxy_raised"    // 代理持有人提高自己的上限
	CaseProxyDefended  ResolutionCase = "proxy_defended"  // 他人的代理成功防守
	CaseProxyOvertaken ResolutionCase = "proxy_overtaken" // 新出价超过了他人的代理上限
)

// RowChange 描述对某一行账本记录的原地修改；nil / 空值字段保持不变
type RowChange struct {
	BidID         int64
	Amount        *decimal.Decimal
	MaxAutoAmount *decimal.Decimal
	Status        BidStatus
}

// Resolution 是一次代理竞价计算的全部结果，由调用方在同一个临界区内落库
type Resolution struct {
	Case    ResolutionCase
	State   RuntimeState
	Changes []RowChange
	Outcome BidOutcome
}

// Resolve 在校验通过、且新出价已以 bidID 写入账本之后计算新的领先价。
// 纯函数：不读写任何存储，req 必须已经过校验（自动出价带有 MaxAutoAmount）。
func Resolve(cfg AuctionConfig, state RuntimeState, req BidRequest, bidID int64) Resolution {
	bidder := req.Bidder.Normalize()
	manualInc := ManualIncrement(cfg)
	autoInc := AutomaticIncrement(cfg, state.CurrentBid)
	maxAuto := req.Amount
	if req.IsAuto && req.MaxAutoAmount != nil {
		maxAuto = *req.MaxAutoAmount
	}

	var res Resolution
	switch {
	case req.IsAuto && state.HasProxy() && state.ProxyBidder.Same(bidder):
		res = raiseOwnProxy(state, req, bidID, maxAuto)
	case !state.HasProxy() || state.ProxyBidder.Same(bidder):
		res = freshLead(cfg, state, req, bidder, bidID, maxAuto, manualInc)
	default:
		ceiling := req.Amount
		if req.IsAuto {
			ceiling = maxAuto
		}
		if ceiling.LessThanOrEqual(state.ProxyMax) {
			res = defendProxy(state, bidID, ceiling, manualInc, autoInc)
		} else {
			minimum := MinimumRequired(cfg, state)
			res = overtakeProxy(state, req, bidder, bidID, ceiling, maxAuto, minimum, manualInc)
		}
	}
	res.Outcome.AutomaticDiff = !res.Outcome.CurrentBid.Equal(req.Amount)
	res.Outcome.BidID = bidID
	res.Outcome.LeadingBidID = res.State.WinningBidID
	return res
}

// raiseOwnProxy: 代理持有人再次提交自动出价，只更新原代理行
func raiseOwnProxy(state RuntimeState, req BidRequest, bidID int64, maxAuto decimal.Decimal) Resolution {
	newMax := decimal.Max(state.ProxyMax, maxAuto)
	newLeading := decimal.Max(state.CurrentBid, decimal.Min(newMax, req.Amount))

	next := state
	next.CurrentBid = newLeading
	next.ProxyMax = newMax

	return Resolution{
		Case:  CaseProxyRaised,
		State: next,
		Changes: []RowChange{
			{BidID: state.ProxyBidID, Amount: ptr(newLeading), MaxAutoAmount: ptr(newMax)},
			{BidID: bidID, Status: BidStatusOutbid},
		},
		Outcome: BidOutcome{Status: OutcomeProxyUpdated, CurrentBid: newLeading},
	}
}

// freshLead: 没有他人的代理，新出价成为领先出价
func freshLead(cfg AuctionConfig, state RuntimeState, req BidRequest, bidder Bidder, bidID int64, maxAuto, manualInc decimal.Decimal) Resolution {
	var leading decimal.Decimal
	switch {
	case !req.IsAuto && state.HasWinner():
		leading = decimal.Max(state.CurrentBid.Add(manualInc), req.Amount)
	case !req.IsAuto:
		leading = req.Amount
	case state.HasWinner():
		leading = decimal.Min(decimal.Max(state.CurrentBid.Add(manualInc), req.Amount), maxAuto)
	default:
		leading = decimal.Min(decimal.Max(cfg.StartPrice, req.Amount), maxAuto)
	}

	next := state
	next.CurrentBid = leading
	next.WinningBidID = bidID
	next.WinningBidder = bidder
	if req.IsAuto {
		next.ProxyMax = maxAuto
		next.ProxyBidder = bidder
		next.ProxyBidID = bidID
	} else {
		next.ClearProxy()
	}

	changes := []RowChange{{BidID: bidID, Amount: ptr(leading)}}
	changes = append(changes, outbidPrevious(state, bidID)...)

	return Resolution{
		Case:    CaseFreshLead,
		State:   next,
		Changes: changes,
		Outcome: BidOutcome{Status: OutcomeAccepted, CurrentBid: leading},
	}
}

// defendProxy: 挑战者的上限不超过现有代理上限，代理以最小必要金额守住领先
func defendProxy(state RuntimeState, bidID int64, ceiling, manualInc, autoInc decimal.Decimal) Resolution {
	lo := state.CurrentBid.Add(manualInc)
	hi := decimal.Min(ceiling.Add(decimal.Max(manualInc, autoInc)), state.ProxyMax)
	leading := clamp(state.ProxyMax, lo, hi)

	next := state
	next.CurrentBid = leading

	return Resolution{
		Case:  CaseProxyDefended,
		State: next,
		Changes: []RowChange{
			{BidID: bidID, Status: BidStatusOutbid},
			{BidID: state.ProxyBidID, Amount: ptr(leading)},
		},
		Outcome: BidOutcome{Status: OutcomeOutbid, CurrentBid: leading, WasOutbid: true},
	}
}

// overtakeProxy: 新出价超过现有代理上限，领先权（自动出价时连同代理）转移给新出价人
func overtakeProxy(state RuntimeState, req BidRequest, bidder Bidder, bidID int64, ceiling, maxAuto, minimum, manualInc decimal.Decimal) Resolution {
	needed := clamp(ceiling, minimum, state.ProxyMax.Add(manualInc))
	if req.IsAuto {
		needed = decimal.Min(needed, maxAuto)
	}

	next := state
	next.CurrentBid = needed
	next.WinningBidID = bidID
	next.WinningBidder = bidder
	if req.IsAuto {
		next.ProxyMax = maxAuto
		next.ProxyBidder = bidder
		next.ProxyBidID = bidID
	} else {
		next.ClearProxy()
	}

	changes := []RowChange{{BidID: bidID, Amount: ptr(needed)}}
	changes = append(changes, outbidPrevious(state, bidID)...)

	return Resolution{
		Case:    CaseProxyOvertaken,
		State:   next,
		Changes: changes,
		Outcome: BidOutcome{Status: OutcomeAccepted, CurrentBid: needed},
	}
}

// outbidPrevious 把之前的领先行和代理行（二者通常是同一行）标记为 outbid
func outbidPrevious(state RuntimeState, bidID int64) []RowChange {
	var changes []RowChange
	seen := map[int64]bool{bidID: true}
	for _, id := range []int64{state.WinningBidID, state.ProxyBidID} {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		changes = append(changes, RowChange{BidID: id, Status: BidStatusOutbid})
	}
	return changes
}

// clamp(x, lo, hi) = min(max(x, lo), hi)
func clamp(x, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(x, lo), hi)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
