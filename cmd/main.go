package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Leganyst/court-reservation/internal/auth"
	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/config"
	"github.com/Leganyst/court-reservation/internal/db"
	"github.com/Leganyst/court-reservation/internal/model"
	"github.com/Leganyst/court-reservation/internal/mq"
	"github.com/Leganyst/court-reservation/internal/obs"
	"github.com/Leganyst/court-reservation/internal/repository"
	"github.com/Leganyst/court-reservation/internal/service"
	"github.com/Leganyst/court-reservation/internal/transport/grpcapi"
	"github.com/Leganyst/court-reservation/internal/transport/httpapi"
)

func main() {
	bootstrapAdmin := flag.String("bootstrap-admin", "", "create or approve an admin with this name, print a token and exit")
	issueToken := flag.String("issue-token", "", "print an access token for this member id and exit")
	flag.Parse()

	// 1. Конфиг приложения и БД из env (+ .env).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("load db config: %v", err)
	}
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL())

	if *issueToken != "" {
		tok, err := issuer.CreateAccessToken(*issueToken)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Трейсинг (no-op без OTEL_EXPORTER_OTLP_ENDPOINT).
	shutdownTracer, err := obs.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("init tracer: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	// 3. БД и миграции.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 4. Redis: ручные блокировки и незавершённые решения.
	rdb := repository.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()
	pctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	if err := rdb.Ping(pctx).Err(); err != nil {
		log.Printf("redis ping %s: %v (requests will fail until it is reachable)", cfg.RedisAddr, err)
	}
	cancel()

	// 5. Публикация событий; без RABBIT_URL только в лог.
	var publisher mq.EventPublisher = mq.LogPublisher{}
	if cfg.RabbitURL != "" {
		p, err := mq.NewPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			log.Fatalf("init publisher: %v", err)
		}
		defer p.Close()
		publisher = p
	}

	// 6. Репозитории.
	bookingRepo := repository.NewGormBookingRepository(gormDB)
	ruleRepo := repository.NewGormWeeklyBlockRepository(gormDB)
	settingRepo := repository.NewGormSettingRepository(gormDB)
	userRepo := repository.NewGormUserRepository(gormDB)
	eventRepo := repository.NewGormEventRepository(gormDB)
	manualStore := repository.NewManualBlockStore(rdb)
	pendingStore := repository.NewPendingStore(rdb, cfg.PendingTTL)

	// 7. Клуб: корты из конфига, правила и лимит из БД.
	courts, err := calendar.ParseCourts(cfg.Courts)
	if err != nil {
		log.Fatalf("courts: %v", err)
	}
	club := calendar.NewClub(courts, calendar.WithRejectOverlaps(cfg.RejectOverlappingRules))
	if err := service.LoadClub(ctx, club, ruleRepo, settingRepo, cfg.StoreTimeout); err != nil {
		log.Fatalf("load club: %v", err)
	}

	// 8. Сервисы.
	bookingSvc := service.NewBookingService(club, bookingRepo, userRepo, manualStore, pendingStore, publisher, cfg.StoreTimeout)
	adminSvc := service.NewAdminService(club, ruleRepo, settingRepo, userRepo, eventRepo, manualStore, publisher, cfg.StoreTimeout)

	if *bootstrapAdmin != "" {
		m, err := adminSvc.BootstrapAdmin(ctx, *bootstrapAdmin)
		if err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
		tok, err := issuer.CreateAccessToken(m.ID)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		log.Printf("admin %q ready, id %s", m.Name, m.ID)
		fmt.Println(tok)
		return
	}

	// 9. HTTP.
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(bookingSvc, adminSvc, issuer)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	// 10. gRPC.
	grpcServer, healthSrv := grpcapi.NewGRPCServer(grpcapi.NewServer(bookingSvc, issuer))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.GRPCAddr, err)
	}
	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	// 11. Грейсфул-шатдаун по сигналу.
	<-ctx.Done()
	log.Println("shutting down...")

	healthSrv.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	sctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcServer.GracefulStop()
}
