// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package guard

import (
	"net/http"

	"github.com/outboxguard/engine/internal/logic/guard"
	"github.com/outboxguard/engine/internal/svc"
	"github.com/outboxguard/engine/internal/types"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func PredictGuardHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GuardPredictRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := guard.NewPredictGuardLogic(r.Context(), svcCtx)
		resp, err := l.PredictGuard(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
