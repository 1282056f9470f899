// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package guard

import (
	"context"
	"time"

	"github.com/outboxguard/engine/internal/svc"
	"github.com/outboxguard/engine/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type PredictGuardLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewPredictGuardLogic(ctx context.Context, svcCtx *svc.ServiceContext) *PredictGuardLogic {
	return &PredictGuardLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *PredictGuardLogic) PredictGuard(req *types.GuardPredictRequest) (resp *types.GuardPredictResponse, err error) {
	tasks, err := tasksFromRequest(req.Tasks)
	if err != nil {
		return nil, err
	}

	predictions := l.svcCtx.Guard.Predict(tasks)
	views := make([]types.GuardPredictionView, 0, len(predictions))
	for _, p := range predictions {
		views = append(views, types.GuardPredictionView{
			TaskID:              p.TaskID,
			PatternID:           p.PatternID,
			Confidence:          p.Confidence,
			PredictedBlockTime:  p.PredictedBlockTime.UTC().Format(time.RFC3339),
			ContributingFactors: p.ContributingFactors,
			RecommendedAction:   p.RecommendedAction,
			MitigationTasks:     p.MitigationTasks,
		})
	}
	return &types.GuardPredictResponse{Predictions: views}, nil
}
