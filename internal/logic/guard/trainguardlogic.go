// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package guard

import (
	"context"
	"time"

	"github.com/outboxguard/engine/internal/errorx"
	"github.com/outboxguard/engine/internal/svc"
	"github.com/outboxguard/engine/internal/types"
	"github.com/outboxguard/engine/pkg/predictive"

	"github.com/zeromicro/go-zero/core/logx"
)

// tasksFromRequest converts the wire shape into predictive.Task records,
// rejecting unparseable timestamps.
func tasksFromRequest(in []types.GuardTask) ([]predictive.Task, error) {
	out := make([]predictive.Task, 0, len(in))
	for _, t := range in {
		createdAt, err := time.Parse(time.RFC3339, t.CreatedAt)
		if err != nil {
			return nil, errorx.ErrBadRequest("task " + t.TaskID + ": createdAt must be RFC3339")
		}
		task := predictive.Task{
			TaskID:         t.TaskID,
			Status:         t.Status,
			Priority:       t.Priority,
			Assignee:       t.Assignee,
			Tags:           t.Tags,
			EstimatedHours: t.EstimatedHours,
			ActualHours:    t.ActualHours,
			CreatedAt:      createdAt,
		}
		if t.BlockedAt != "" {
			at, err := time.Parse(time.RFC3339, t.BlockedAt)
			if err != nil {
				return nil, errorx.ErrBadRequest("task " + t.TaskID + ": blockedAt must be RFC3339")
			}
			task.BlockedAt = &at
		}
		if t.UnblockedAt != "" {
			at, err := time.Parse(time.RFC3339, t.UnblockedAt)
			if err != nil {
				return nil, errorx.ErrBadRequest("task " + t.TaskID + ": unblockedAt must be RFC3339")
			}
			task.UnblockedAt = &at
		}
		out = append(out, task)
	}
	return out, nil
}

type TrainGuardLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewTrainGuardLogic(ctx context.Context, svcCtx *svc.ServiceContext) *TrainGuardLogic {
	return &TrainGuardLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *TrainGuardLogic) TrainGuard(req *types.GuardTrainRequest) (resp *types.GuardTrainResponse, err error) {
	tasks, err := tasksFromRequest(req.Tasks)
	if err != nil {
		return nil, err
	}

	patterns := l.svcCtx.Guard.Train(tasks)
	views := make([]types.GuardPatternView, 0, len(patterns))
	for _, p := range patterns {
		views = append(views, types.GuardPatternView{
			Id:                  p.ID,
			Name:                p.Name,
			Severity:            string(p.Severity),
			Frequency:           p.Frequency,
			AvgResolutionTimeMs: p.AvgResolutionTimeMs,
			OccurrenceCount:     p.OccurrenceCount,
		})
	}
	l.Infof("guard trained on %d tasks, %d patterns mined", len(tasks), len(patterns))
	return &types.GuardTrainResponse{Patterns: views}, nil
}
