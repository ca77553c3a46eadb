package server

import (
	"context"
	"time"
)

// TicksPerSecond 默认 Tick 频率（20 TPS）
const TicksPerSecond = 20

func tickInterval(hz int) time.Duration {
	if hz <= 0 {
		hz = TicksPerSecond
	}
	return time.Second / time.Duration(hz)
}

// StartTicker 启动房间的 Tick 循环，直到 ctx 结束；重复调用无效
func (r *Room) StartTicker(ctx context.Context) {
	if !r.tickerStarted.CompareAndSwap(false, true) {
		return
	}
	go func() {
		ticker := time.NewTicker(tickInterval(r.world.Params().TickRateHz))
		defer ticker.Stop()
		defer close(r.done)
		defer r.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Step()
			}
		}
	}()
}

// Done 在 Tick 停止后关闭
func (r *Room) Done() <-chan struct{} { return r.done }

// Step 执行一个 Tick：输入 -> 世界 -> 广播
func (r *Room) Step() {
	start := time.Now()
	r.tickSeq.Add(1)
	r.BeginTick()
	r.ProcessInputs()
	r.UpdateWorld()
	r.BroadcastDelta()
	r.metrics.AddTick(time.Since(start).Nanoseconds())
}
