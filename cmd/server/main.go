package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/outboxguard/engine/internal/config"
	"github.com/outboxguard/engine/internal/errorx"
	"github.com/outboxguard/engine/internal/handler"
	"github.com/outboxguard/engine/internal/svc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/proc"
	"github.com/zeromicro/go-zero/core/prometheus"
	"github.com/zeromicro/go-zero/core/service"
	"github.com/zeromicro/go-zero/core/threading"
	"github.com/zeromicro/go-zero/rest"
)

func main() {
	configFile := flag.String("f", "etc/outboxguard.yaml", "config file path")
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c, conf.UseEnv())

	logx.DisableStat()
	errorx.RegisterErrorHandler()
	prometheus.Enable()

	ctx, err := svc.NewServiceContext(c)
	logx.Must(err)

	recovered, err := ctx.Recover(context.Background())
	logx.Must(err)
	if recovered > 0 {
		logx.Infof("recovery re-enqueued %d in-flight jobs", recovered)
	}

	// API server (producer API + monitor surface)
	apiServer := rest.MustNewServer(c.RestConf, rest.WithCors("*"))
	handler.RegisterHandlers(apiServer, ctx)
	apiServer.AddRoute(rest.Route{
		Method:  http.MethodGet,
		Path:    "/metrics",
		Handler: promhttp.Handler().ServeHTTP,
	})

	// Shutdown hooks
	proc.AddShutdownListener(ctx.Close)

	// Service group: worker pool + monitor + API
	group := service.NewServiceGroup()
	group.Add(newPipelineService(ctx))
	group.Add(apiServer)

	logx.Infow("outboxguard server configured",
		logx.Field("api", fmt.Sprintf("http://%s:%d/api/v1", c.Host, c.Port)),
		logx.Field("metrics", fmt.Sprintf("http://%s:%d/metrics", c.Host, c.Port)),
		logx.Field("workers", c.Pipeline.Workers),
		logx.Field("provider", c.Provider.Mode),
		logx.Field("database", ctx.Store.Path()),
	)

	group.Start()
}

// pipelineService adapts the processor worker pool and the monitor's
// sampling loop to the service.Service interface.
type pipelineService struct {
	svcCtx *svc.ServiceContext

	ctx    context.Context
	cancel context.CancelFunc
	group  *threading.RoutineGroup
}

func newPipelineService(svcCtx *svc.ServiceContext) *pipelineService {
	ctx, cancel := context.WithCancel(context.Background())
	return &pipelineService{
		svcCtx: svcCtx,
		ctx:    ctx,
		cancel: cancel,
		group:  threading.NewRoutineGroup(),
	}
}

func (s *pipelineService) Start() {
	pollInterval := time.Duration(s.svcCtx.Config.Pipeline.PollIntervalMs) * time.Millisecond
	for i := 0; i < s.svcCtx.Config.Pipeline.Workers; i++ {
		s.group.RunSafe(func() {
			s.svcCtx.Processor.Run(s.ctx, pollInterval)
		})
	}
	s.group.RunSafe(func() {
		s.svcCtx.Monitor.Run(s.ctx)
	})
}

func (s *pipelineService) Stop() {
	s.cancel()
	s.group.Wait()
}
