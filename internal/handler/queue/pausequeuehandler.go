// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package queue

import (
	"net/http"

	"github.com/outboxguard/engine/internal/logic/queue"
	"github.com/outboxguard/engine/internal/svc"
	"github.com/outboxguard/engine/internal/types"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func PauseQueueHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.QueueRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := queue.NewPauseQueueLogic(r.Context(), svcCtx)
		resp, err := l.PauseQueue(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
