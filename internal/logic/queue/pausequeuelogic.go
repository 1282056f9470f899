// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package queue

import (
	"context"

	"github.com/outboxguard/engine/internal/svc"
	"github.com/outboxguard/engine/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type PauseQueueLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewPauseQueueLogic(ctx context.Context, svcCtx *svc.ServiceContext) *PauseQueueLogic {
	return &PauseQueueLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *PauseQueueLogic) PauseQueue(req *types.QueueRequest) (resp *types.QueueStateResponse, err error) {
	name, err := parseQueueName(req.Name)
	if err != nil {
		return nil, err
	}

	l.svcCtx.Queue.Pause(name)
	l.Infof("queue %s paused", name)
	return &types.QueueStateResponse{Queue: string(name), Paused: true}, nil
}
