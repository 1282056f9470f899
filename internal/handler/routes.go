// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package handler

import (
	"net/http"

	"github.com/outboxguard/engine/internal/handler/email"
	"github.com/outboxguard/engine/internal/handler/guard"
	"github.com/outboxguard/engine/internal/handler/monitor"
	"github.com/outboxguard/engine/internal/handler/queue"
	"github.com/outboxguard/engine/internal/svc"
	"github.com/zeromicro/go-zero/rest"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/emails",
				Handler: email.SendEmailHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/queues/:name/stats",
				Handler: queue.GetQueueStatsHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/queues/:name/pause",
				Handler: queue.PauseQueueHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/queues/:name/resume",
				Handler: queue.ResumeQueueHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/health",
				Handler: monitor.GetHealthHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/export",
				Handler: monitor.ExportHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/guard/train",
				Handler: guard.TrainGuardHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/guard/predict",
				Handler: guard.PredictGuardHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api/v1"),
	)
}
