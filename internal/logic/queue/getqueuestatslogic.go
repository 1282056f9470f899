// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package queue

import (
	"context"
	"strings"
	"time"

	"github.com/outboxguard/engine/internal/errorx"
	"github.com/outboxguard/engine/internal/svc"
	"github.com/outboxguard/engine/internal/types"
	"github.com/outboxguard/engine/pkg/email"

	"github.com/zeromicro/go-zero/core/logx"
)

// parseQueueName maps a path segment onto one of the three lane names,
// accepting both the canonical form and a lowercase alias.
func parseQueueName(name string) (email.QueueName, error) {
	switch strings.ToUpper(name) {
	case string(email.QueueHigh), "HIGH":
		return email.QueueHigh, nil
	case string(email.QueueNormal):
		return email.QueueNormal, nil
	case string(email.QueueBulk):
		return email.QueueBulk, nil
	default:
		return "", errorx.ErrNotFound("unknown queue " + name)
	}
}

type GetQueueStatsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetQueueStatsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetQueueStatsLogic {
	return &GetQueueStatsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetQueueStatsLogic) GetQueueStats(req *types.QueueRequest) (resp *types.QueueStatsResponse, err error) {
	name, err := parseQueueName(req.Name)
	if err != nil {
		return nil, err
	}

	stats := l.svcCtx.Queue.Stats(name, time.Now())
	return &types.QueueStatsResponse{
		Queue:   string(name),
		Waiting: stats.Waiting,
		Delayed: stats.Delayed,
		Paused:  stats.Paused,
		Dlq:     stats.DLQ,
	}, nil
}
