package domain

import "time"

// LifecycleState 是由配置和时钟推导出的拍卖状态，不落库
type LifecycleState string

const (
	LifecycleScheduled LifecycleState = "scheduled"
	LifecycleActive    LifecycleState = "active"
	LifecycleEnded     LifecycleState = "ended"
)

// Status 把 (now, start, end) 映射到生命周期状态。
// 未配置任何时间表的拍卖始终处于 active。
func Status(now time.Time, start, end *time.Time) LifecycleState {
	if start != nil && now.Before(*start) {
		return LifecycleScheduled
	}
	if end != nil && now.After(*end) {
		return LifecycleEnded
	}
	return LifecycleActive
}
