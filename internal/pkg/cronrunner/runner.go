// internal/pkg/cronrunner/runner.go
package cronrunner

import (
	"context"

	"github.com/robfig/cron/v3"

	"auctionhub/internal/pkg/logger"
)

// Runner 用一个基础 context 驱动所有定时任务，关停时取消它
type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context
}

// New 创建支持秒级表达式的调度器，同一个任务上一次未结束时跳过本次触发
func New(baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		baseCtx: baseCtx,
	}
}

// Add 注册任务，spec 支持 "@every 30s" 这类描述符
func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

func (r *Runner) Start() {
	logger.Base().Info().Int("entries", len(r.cron.Entries())).Msg("✅ cron started")
	r.cron.Start()
}

// Stop 停止调度并等待正在执行的任务结束
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	logger.Base().Info().Msg("🛑 cron stopped")
}
