// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package email

import (
	"context"
	"time"

	"github.com/outboxguard/engine/internal/errorx"
	"github.com/outboxguard/engine/internal/svc"
	"github.com/outboxguard/engine/internal/types"
	pkgemail "github.com/outboxguard/engine/pkg/email"
	"github.com/outboxguard/engine/pkg/mail"

	"github.com/zeromicro/go-zero/core/logx"
)

type SendEmailLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSendEmailLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SendEmailLogic {
	return &SendEmailLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SendEmailLogic) SendEmail(req *types.SendEmailRequest) (resp *types.SendEmailResponse, err error) {
	scheduledAt := time.Now()
	if req.ScheduledAt != "" {
		scheduledAt, err = time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return nil, errorx.ErrBadRequest("scheduledAt must be RFC3339: " + err.Error())
		}
	}

	job, err := pkgemail.New(req.To, req.From, req.Subject, req.BodyText, req.BodyHTML,
		req.AccountID, req.AccountAgeDays, pkgemail.Priority(req.Priority), scheduledAt)
	if err != nil {
		return nil, errorx.ErrBadRequest(err.Error())
	}
	job.Headers = req.Headers
	job.CampaignID = req.CampaignID

	if issues := mail.Lint(mail.Message{Subject: job.Subject, BodyHTML: job.BodyHTML}); len(issues) > 0 {
		l.Infow("deliverability lint", logx.Field("to", job.To), logx.Field("issues", issues))
	}

	queueName, err := job.Priority.Queue()
	if err != nil {
		return nil, errorx.ErrBadRequest(err.Error())
	}
	if l.svcCtx.Queue.Paused(queueName) {
		return nil, errorx.ErrConflict("queue " + string(queueName) + " is paused")
	}

	res, err := l.svcCtx.Enqueue(job)
	if err != nil {
		return nil, errorx.ErrInternal("failed to enqueue email: " + err.Error())
	}

	return &types.SendEmailResponse{
		Id:     res.JobID,
		Queue:  string(res.QueueName),
		Status: "queued",
	}, nil
}
