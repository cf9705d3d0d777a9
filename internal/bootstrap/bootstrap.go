package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"caption-server-go/internal/domain/caption"
	domaindescribe "caption-server-go/internal/domain/describe"
	"caption-server-go/internal/domain/eventbus"
	"caption-server-go/internal/domain/fetch"
	domainimage "caption-server-go/internal/domain/image"
	"caption-server-go/internal/domain/journal"
	"caption-server-go/internal/domain/safety"
	platformconfig "caption-server-go/internal/platform/config"
	platformerrors "caption-server-go/internal/platform/errors"
	platformlogging "caption-server-go/internal/platform/logging"
	platformobservability "caption-server-go/internal/platform/observability"
	platformstorage "caption-server-go/internal/platform/storage"
	httptransport "caption-server-go/internal/transport/http"
	httpdescribe "caption-server-go/internal/transport/http/describe"
	httpjournal "caption-server-go/internal/transport/http/journal"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	eventWorkers = 2
	eventQueue   = 256

	shutdownGrace = 15 * time.Second
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	bus                   *eventbus.Bus
	journalDB             *gorm.DB
	journalStore          journal.Store
	engine                *caption.Gate
	describer             *domaindescribe.Service
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.release()
		return err
	}

	logger := state.logger
	if state.config == nil || logger == nil || state.describer == nil {
		state.release()
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger/describer not initialised",
		)
	}
	defer state.release()

	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	addr := net.JoinHostPort(state.config.Server.IP, strconv.Itoa(state.config.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "failed to listen on "+addr, err)
	}

	if err := startHTTPServer(state, listener, group, groupCtx); err != nil {
		_ = listener.Close()
		cancel()
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}

	return waitForShutdown(signalCtx, groupCtx, cancel, logger, group)
}

// release 按初始化的逆序释放资源
func (s *appState) release() {
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.journalStore != nil {
		if err := s.journalStore.Close(context.Background()); err != nil && s.logger != nil {
			s.logger.WarnTag("日志库", "请求日志存储未正常关闭: %v", err)
		}
	}
	if s.journalDB != nil {
		if err := platformstorage.Close(s.journalDB); err != nil && s.logger != nil {
			s.logger.WarnTag("日志库", "数据库未正常关闭: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.observabilityShutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.WarnTag("引导", "可观测性未正常关闭: %v", err)
		}
		cancel()
	}
	if s.logger != nil {
		s.logger.InfoTag("引导", "资源清理完成")
		_ = s.logger.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("引导", "初始化依赖关系概览")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("引导", "%s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("引导", "%s (%s) <- %v", step.ID, step.Title, step.DependsOn)
	}
	logger.InfoTag("引导", "启动服务")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph 返回按依赖顺序排列的初始化步骤
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load-runtime",
			Title:   "Load runtime configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadRuntimeConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load-runtime"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-journal",
			Title:     "Initialise event bus and request journal",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initJournalStep,
		},
		{
			ID:        "caption:init-engine",
			Title:     "Initialise caption engine",
			DependsOn: []string{"observability:setup-hooks"},
			Kind:      platformerrors.KindEngine,
			Execute:   initEngineStep,
		},
		{
			ID:        "describe:init-service",
			Title:     "Assemble describe pipeline",
			DependsOn: []string{"caption:init-engine", "storage:init-journal"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initDescribeStep,
		},
	}
}

func loadRuntimeConfigStep(_ context.Context, state *appState) error {
	loader := platformconfig.NewLoader().WithDotEnv(true)
	if state.configPath != "" {
		loader = loader.WithPath(state.configPath)
	}
	result, err := loader.Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load-runtime", "failed to load configuration", err)
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	state.slogger = logger.Slog()
	logger.InfoTag(
		"引导",
		"日志模块就绪 [%s] %s",
		state.config.Log.Level,
		state.configPath,
	)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled: state.config.Observability.Enabled,
		Metrics: state.config.Observability.Metrics,
	}
	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initJournalStep(_ context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"storage:init-journal",
			"config/logger not initialised",
		)
	}

	state.bus = eventbus.New(eventWorkers, eventQueue, state.logger)

	jcfg := state.config.Journal
	if !jcfg.Enabled {
		state.logger.InfoTag("日志库", "请求日志已关闭，事件只写入运行日志")
		if err := state.bus.SubscribeHandler(
			eventbus.LogHandler(state.logger.DebugTag),
			eventbus.EventDescribeCompleted,
			eventbus.EventDescribeFailed,
		); err != nil {
			return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-journal", "failed to subscribe event logger", err)
		}
		return nil
	}

	deps := journal.Dependencies{}
	if jcfg.Driver == journal.DriverSQLite {
		db, err := platformstorage.Open(jcfg.SQLite.DSN)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-journal", "failed to open journal database", err)
		}
		state.journalDB = db
		deps.SQLiteDB = db
	}

	store, err := journal.New(journal.Config{
		Driver:   jcfg.Driver,
		Capacity: jcfg.Capacity,
		SQLite:   &journal.SQLiteConfig{DSN: jcfg.SQLite.DSN},
		Redis: &journal.RedisConfig{
			Addr:     jcfg.Redis.Addr,
			Username: jcfg.Redis.Username,
			Password: jcfg.Redis.Password,
			DB:       jcfg.Redis.DB,
			Key:      jcfg.Redis.Key,
		},
	}, deps)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-journal", "failed to create journal store", err)
	}
	state.journalStore = store

	if err := journal.NewRecorder(store, state.logger, journal.RecorderOptions{
		RecordContent: jcfg.RecordContent,
	}).Attach(state.bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-journal", "failed to subscribe journal recorder", err)
	}
	state.logger.InfoTag("日志库", "请求日志就绪: driver=%s capacity=%d", jcfg.Driver, jcfg.Capacity)
	return nil
}

func initEngineStep(ctx context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"caption:init-engine",
			"config/logger not initialised",
		)
	}

	engine, err := caption.New(ctx, state.config.Caption, state.logger)
	if err != nil {
		state.logger.ErrorTag("引擎", "引擎初始化失败: %v", err)
		return platformerrors.Wrap(platformerrors.KindEngine, "caption:init-engine", "failed to initialise caption engine", err)
	}
	state.engine = engine
	return nil
}

func initDescribeStep(_ context.Context, state *appState) error {
	if state == nil || state.engine == nil || state.bus == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"describe:init-service",
			"engine/event bus not initialised",
		)
	}
	cfg := state.config

	policy, err := safety.NewPolicy(cfg.SSRF.BlockReserved, cfg.SSRF.DenyCIDRs)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "describe:init-service", "invalid ssrf policy", err)
	}

	fetchOpts := fetch.Options{
		Timeout:   cfg.Fetch.Timeout,
		MaxBytes:  cfg.Fetch.MaxBytes,
		UserAgent: cfg.Fetch.UserAgent,
		Logger:    state.logger,
	}
	if cfg.SSRF.DialGuard {
		fetchOpts.Guard = &policy
	}

	describer, err := domaindescribe.NewService(domaindescribe.Options{
		Checker: safety.NewChecker(policy, nil, state.logger),
		Fetcher: fetch.New(fetchOpts),
		Decoder: domainimage.NewDecoder(domainimage.Limits{
			MaxWidth:  cfg.Image.MaxWidth,
			MaxHeight: cfg.Image.MaxHeight,
			MaxPixels: cfg.Image.MaxPixels,
		}, state.logger),
		Engine:    state.engine,
		Publisher: state.bus,
		Logger:    state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "describe:init-service", "failed to assemble describe service", err)
	}
	state.describer = describer

	state.logger.InfoTag(
		"安全",
		"目标地址策略: block_reserved=%t dial_guard=%t deny_cidrs=%d",
		cfg.SSRF.BlockReserved,
		cfg.SSRF.DialGuard,
		len(cfg.SSRF.DenyCIDRs),
	)
	return nil
}

// buildHandler 组装路由并注册业务接口
func buildHandler(ctx context.Context, state *appState) (http.Handler, error) {
	router, err := httptransport.Build(httptransport.Options{
		Config: state.config,
		Logger: state.logger,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}

	describeService, err := httpdescribe.NewService(state.describer, state.logger, state.config.HTTP.MaxBodyBytes)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "describe:new-service", "failed to create describe service", err)
	}
	if err := describeService.Register(ctx, router.API); err != nil {
		return nil, err
	}

	if state.journalStore != nil {
		journalService, err := httpjournal.NewService(state.journalStore, state.logger)
		if err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindTransport, "journal:new-service", "failed to create journal service", err)
		}
		if err := journalService.Register(ctx, router.API); err != nil {
			return nil, err
		}
	}

	return router.Engine, nil
}

func startHTTPServer(
	state *appState,
	listener net.Listener,
	g *errgroup.Group,
	groupCtx context.Context,
) error {
	logger := state.logger
	handler, err := buildHandler(groupCtx, state)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdownTimeout := state.config.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "Gin 服务已启动，访问地址 http://%s", listener.Addr())
		logger.InfoTag("HTTP", "描述接口: POST http://%s/describe-url", listener.Addr())
		if state.config.Web.Docs {
			logger.InfoTag("HTTP", "在线文档入口: http://%s/docs", listener.Addr())
		}

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP 服务已优雅关闭")
			}
		}()

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})

	return nil
}

// waitForShutdown 等待退出信号或任一服务提前退出
func waitForShutdown(
	ctx context.Context,
	groupCtx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	select {
	case <-ctx.Done():
		logger.InfoTag("引导", "收到退出信号 %v，正在进行资源清理", context.Cause(ctx))
	case <-groupCtx.Done():
		logger.WarnTag("引导", "服务提前退出 %v，正在进行资源清理", context.Cause(groupCtx))
	}

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("引导", "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag("引导", "所有服务已成功关闭")
	case <-time.After(shutdownGrace):
		logger.ErrorTag("引导", "服务关闭超时，已强制退出")
		return errors.New("服务关闭超时")
	}
	return nil
}
