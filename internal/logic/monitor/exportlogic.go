// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package monitor

import (
	"context"
	"time"

	"github.com/outboxguard/engine/internal/svc"
	"github.com/outboxguard/engine/pkg/monitor"

	"github.com/zeromicro/go-zero/core/logx"
)

type ExportLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewExportLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ExportLogic {
	return &ExportLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Export renders the monitor's bespoke key-value text dump from a fresh
// sample; the Prometheus registry is served separately on /metrics.
func (l *ExportLogic) Export() (string, error) {
	snapshot := l.svcCtx.Monitor.Sample(time.Now())
	return monitor.Export(snapshot), nil
}
