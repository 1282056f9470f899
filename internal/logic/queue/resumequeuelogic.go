// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package queue

import (
	"context"

	"github.com/outboxguard/engine/internal/svc"
	"github.com/outboxguard/engine/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type ResumeQueueLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewResumeQueueLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ResumeQueueLogic {
	return &ResumeQueueLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *ResumeQueueLogic) ResumeQueue(req *types.QueueRequest) (resp *types.QueueStateResponse, err error) {
	name, err := parseQueueName(req.Name)
	if err != nil {
		return nil, err
	}

	l.svcCtx.Queue.Resume(name)
	l.Infof("queue %s resumed", name)
	return &types.QueueStateResponse{Queue: string(name), Paused: false}, nil
}
