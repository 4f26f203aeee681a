package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/annelo/cmdblock-server/internal/admin"
	"github.com/annelo/cmdblock-server/internal/block"
	"github.com/annelo/cmdblock-server/internal/commandblock"
	"github.com/annelo/cmdblock-server/internal/config"
	"github.com/annelo/cmdblock-server/internal/console"
	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/internal/logging"
	"github.com/annelo/cmdblock-server/internal/permission"
	"github.com/annelo/cmdblock-server/internal/plugin"
	"github.com/annelo/cmdblock-server/internal/service"
	"github.com/annelo/cmdblock-server/internal/transport/ws"
)

var (
	configPath = flag.String("config", "server.yaml", "Путь к файлу конфигурации")
	port       = flag.Int("port", 0, "Порт для gRPC сервера (0 = из конфигурации)")
	seed       = flag.Int64("seed", 0, "Сид для генерации мира (0 = из конфигурации или случайный)")
	noConsole  = flag.Bool("no-console", false, "Не запускать консоль администратора")
)

func main() {
	// Парсим флаги командной строки
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.GRPCAddr = fmt.Sprintf(":%d", *port)
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}
	if *noConsole {
		cfg.Console = false
	}
	// Если сид не указан, генерируем случайный
	if cfg.World.Seed == 0 {
		cfg.World.Seed = time.Now().UnixNano()
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	if err := run(cfg, log); err != nil {
		log.Errorw("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.SugaredLogger) error {
	// Создаем TCP-слушатель
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("не удалось создать слушателя: %w", err)
	}

	perms, err := permission.LoadFile(cfg.PermissionsFile)
	if err != nil {
		return err
	}

	var gen block.Generator = block.NewTerrainGenerator(cfg.World.Seed)
	if cfg.World.FlatHeight > 0 {
		gen = block.FlatGenerator{Height: cfg.World.FlatHeight}
	}

	// Создаем контекст для управления сервисными задачами
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()

	// 1) Инициализируем реестр плагинов и мир
	reg := plugin.NewDefaultRegistry()
	worldService := service.NewWorldService(reg, block.NewManager(gen), service.Options{
		Logger:      log.Named("world"),
		Spawn:       cube.Pos{World: cfg.World.Name, X: cfg.World.SpawnX, Z: cfg.World.SpawnZ},
		JoinTimeout: cfg.JoinTimeout,
	})
	worldService.RegisterServer(grpcServer)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// 2) Встроенный плагин командных блоков
	cmdBlocks := commandblock.New()
	reg.RegisterPlugin(cmdBlocks)

	pm := plugin.NewPluginManager(cfg.PluginDir, log.Named("plugins"))
	api := plugin.API{
		Registry:    reg,
		Permissions: perms,
		Forms:       worldService.Forms(),
		Notifier:    worldService,
		Logger:      log.Named("plugin"),
	}

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			log.Info("останавливаем сервер...")
			healthServer.Shutdown()
			worldService.Stop()
			cancel()
		})
	}

	// 3) Команды администратора до MarkCore, чтобы reload их не удалял
	console.RegisterBuiltins(console.Server{
		Registry:    reg,
		Plugins:     pm,
		API:         api,
		Loop:        worldService.Loop(),
		Permissions: perms,
		Stop:        stop,
	})

	// 4) Обозначаем границу core-регистраций и загружаем плагины
	reg.MarkCore()
	if err := pm.LoadPlugins(reg); err != nil {
		log.Warnw("ошибка при загрузке плагинов", "error", err)
	}
	if err := pm.EnablePlugins(reg, api); err != nil {
		log.Warnw("не все плагины включены", "error", err)
	}

	worldService.Start(ctx)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var adminServer *http.Server
	if cfg.AdminAddr != "" {
		adminServer = &http.Server{
			Addr: cfg.AdminAddr,
			Handler: admin.NewRouter(admin.Deps{
				CommandBlocks: cmdBlocks,
				Players:       worldService.Players(),
				WebSocket:     ws.NewGateway(worldService, log.Named("ws")),
				Logger:        log.Named("admin"),
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Infow("admin HTTP сервер запущен", "addr", cfg.AdminAddr)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("admin HTTP сервер", "error", err)
			}
		}()
	}

	// Обрабатываем сигналы для корректного завершения
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-signalChan:
			log.Info("получен сигнал завершения")
			stop()
		case <-ctx.Done():
		}
	}()

	if cfg.Console {
		go console.Run(ctx, reg, os.Stdin, os.Stdout)
	}

	go func() {
		<-ctx.Done()
		if adminServer != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = adminServer.Shutdown(shutdownCtx)
		}
		grpcServer.GracefulStop()
	}()

	log.Infow("игровой сервер запущен", "addr", cfg.GRPCAddr, "seed", cfg.World.Seed, "world", cfg.World.Name)
	serveErr := grpcServer.Serve(lis)

	stop()
	<-worldService.Loop().Done()
	if err := pm.DisablePlugins(reg); err != nil {
		log.Warnw("ошибка при выключении плагинов", "error", err)
	}
	if serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
		return serveErr
	}
	return nil
}
