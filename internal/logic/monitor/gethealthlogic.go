// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package monitor

import (
	"context"
	"time"

	"github.com/outboxguard/engine/internal/svc"
	"github.com/outboxguard/engine/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type GetHealthLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetHealthLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetHealthLogic {
	return &GetHealthLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetHealthLogic) GetHealth() (resp *types.HealthResponse, err error) {
	snapshot := l.svcCtx.Monitor.Sample(time.Now())

	components := make([]types.ComponentStatus, 0, len(snapshot.Components))
	for _, c := range snapshot.Components {
		components = append(components, types.ComponentStatus{
			Component: c.Component,
			Status:    string(c.Status),
			Detail:    c.Detail,
		})
	}

	alerts := make([]types.AlertView, 0, len(snapshot.ActiveAlerts))
	for _, a := range snapshot.ActiveAlerts {
		alerts = append(alerts, types.AlertView{
			Id:        a.ID,
			RuleId:    a.RuleID,
			Component: a.Component,
			Severity:  string(a.Severity),
			Message:   a.Message,
			RaisedAt:  a.RaisedAt.UTC().Format(time.RFC3339),
		})
	}

	return &types.HealthResponse{
		Status:     string(snapshot.Health),
		Components: components,
		Alerts:     alerts,
	}, nil
}
