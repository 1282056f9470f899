// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package monitor

import (
	"net/http"

	"github.com/outboxguard/engine/internal/logic/monitor"
	"github.com/outboxguard/engine/internal/svc"
	"github.com/zeromicro/go-zero/rest/httpx"
)

// ExportHandler serves the monitor's plain-text key-value dump rather
// than JSON, so it writes the body directly instead of going through
// httpx.OkJsonCtx.
func ExportHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := monitor.NewExportLogic(r.Context(), svcCtx)
		body, err := l.Export()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}
