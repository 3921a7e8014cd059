package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"hatchseed/internal/admin"
	convhandler "hatchseed/internal/conversation/handler"
	convmetrics "hatchseed/internal/conversation/metrics"
	convservice "hatchseed/internal/conversation/service"
	convstore "hatchseed/internal/conversation/store"
	"hatchseed/internal/entitlement"
	entitlementhandler "hatchseed/internal/entitlement/handler"
	"hatchseed/internal/events"
	eventshandler "hatchseed/internal/events/handler"
	eventsmetrics "hatchseed/internal/events/metrics"
	jwttoken "hatchseed/internal/jwt_token"
	"hatchseed/internal/ledger"
	ledgerhandler "hatchseed/internal/ledger/handler"
	notificationhandler "hatchseed/internal/notification/handler"
	notificationservice "hatchseed/internal/notification/service"
	notificationstore "hatchseed/internal/notification/store"
	"hatchseed/internal/platform/config"
	"hatchseed/internal/platform/metrics"
	"hatchseed/internal/retention"
	"hatchseed/internal/slots/adapters"
	slotshandler "hatchseed/internal/slots/handler"
	slotsmetrics "hatchseed/internal/slots/metrics"
	slotsmodels "hatchseed/internal/slots/models"
	slotsservice "hatchseed/internal/slots/service"
	slotsstore "hatchseed/internal/slots/store"
	httptransport "hatchseed/internal/transport/http"
	audit "hatchseed/pkg/platform/audit"
	"hatchseed/pkg/platform/audit/publishers/compliance"
	"hatchseed/pkg/platform/audit/publishers/ops"
	"hatchseed/pkg/platform/audit/publishers/security"
	auditmemory "hatchseed/pkg/platform/audit/store/memory"
	auditpostgres "hatchseed/pkg/platform/audit/store/postgres"
)

// stores is the persistence for one process: Postgres when a database is
// configured, in-memory otherwise.
type stores struct {
	slots         slotsservice.Store
	conversations convservice.Store
	notifications notificationservice.Store
	ledger        ledger.Store
	entitlements  entitlement.Store
	audit         audit.Store

	slotsTx        slotsservice.SetTx
	conversationTx convservice.ConversationTx
	feedTx         notificationservice.Transactor
}

func memoryStores() stores {
	slots := slotsstore.NewInMemoryStore()
	conversations := convstore.NewInMemoryStore()
	return stores{
		slots:          slots,
		conversations:  conversations,
		notifications:  notificationstore.NewInMemoryStore(),
		ledger:         ledger.NewInMemoryStore(),
		entitlements:   entitlement.NewInMemoryStore(),
		audit:          auditmemory.NewInMemoryStore(),
		slotsTx:        slotsservice.NewShardedTx(slots),
		conversationTx: convservice.NewShardedTx(conversations),
	}
}

func postgresStores(db *sql.DB) stores {
	slots := slotsstore.NewPostgres(db)
	conversations := convstore.NewPostgres(db)
	return stores{
		slots:          slots,
		conversations:  conversations,
		notifications:  notificationstore.NewPostgres(db),
		ledger:         ledger.NewPostgres(db),
		entitlements:   entitlement.NewPostgres(db),
		audit:          auditpostgres.New(db),
		slotsTx:        newSlotsPostgresTx(db, slots),
		conversationTx: newConversationPostgresTx(db, conversations),
		feedTx:         sqlTransactor(db),
	}
}

// app is the fully wired process minus its network listeners.
type app struct {
	bus           *events.Bus
	eventsMetrics *eventsmetrics.Metrics
	router        http.Handler
	retention     *retention.Worker
	closers       []func() error
}

func buildApp(cfg config.Server, st stores, checks map[string]func(ctx context.Context) error, logger *slog.Logger) *app {
	eventsMetrics := eventsmetrics.New()
	bus := events.NewBus(
		events.WithBufferSize(cfg.Events.ConnectionBuffer),
		events.WithMetrics(eventsMetrics),
		events.WithLogger(logger),
	)

	complianceAuditor := compliance.New(st.audit,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics()),
	)
	securityAuditor := security.New(st.audit, security.WithLogger(logger))
	opsTracker := ops.New(st.audit,
		ops.WithLogger(logger),
		ops.WithMetrics(ops.NewMetrics()),
	)

	ledgerService := ledger.NewService(st.ledger)
	entitlementService := entitlement.NewService(st.entitlements,
		entitlement.WithAuditor(complianceAuditor),
		entitlement.WithLogger(logger),
	)

	feedOpts := []notificationservice.Option{
		notificationservice.WithPublisher(bus),
		notificationservice.WithOpsTracker(opsTracker),
		notificationservice.WithRetention(cfg.Retention.Notifications),
		notificationservice.WithStoryLifetime(cfg.Retention.StoryLifetime),
		notificationservice.WithLogger(logger),
	}
	if st.feedTx != nil {
		feedOpts = append(feedOpts, notificationservice.WithTransactor(st.feedTx))
	}
	// Broadcast targets resolve straight from the set store so the feed does
	// not depend on the slots service, which notifies through it.
	feedService := notificationservice.New(st.notifications, st.slots, feedOpts...)

	conversationService := convservice.New(st.conversations,
		convservice.WithTx(st.conversationTx),
		convservice.WithPublisher(bus),
		convservice.WithOpsTracker(opsTracker),
		convservice.WithMetrics(convmetrics.New()),
		convservice.WithRetention(cfg.Retention.Conversations),
		convservice.WithLogger(logger),
	)

	slotsService := slotsservice.New(
		st.slots,
		adapters.NewLedgerAdapter(ledgerService),
		adapters.NewEntitlementAdapter(entitlementService),
		complianceAuditor,
		slotsservice.WithTx(st.slotsTx),
		slotsservice.WithTiming(slotsmodels.Timing{
			GraceWindow: cfg.Slots.GraceWindow,
			UnlockDelay: cfg.Slots.UnlockDelay,
		}),
		slotsservice.WithMediaStore(adapters.NewLoggingMediaStore(logger)),
		slotsservice.WithNotifier(feedService),
		slotsservice.WithRelatedPurgers(conversationService, feedService),
		slotsservice.WithPublisher(bus),
		slotsservice.WithOpsTracker(opsTracker),
		slotsservice.WithMetrics(slotsmetrics.New()),
		slotsservice.WithLogger(logger),
	)
	entitlementService.SetReplenisher(slotsService)

	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer)

	router := httptransport.NewRouter(httptransport.Deps{
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Security:  securityAuditor,
		Metrics:   metrics.New(),
		Logger:    logger,
		Checks:    checks,

		Slots:         slotshandler.New(slotsService, logger),
		Ledger:        ledgerhandler.New(ledgerService, logger),
		Entitlements:  entitlementhandler.New(entitlementService, logger),
		Conversations: convhandler.New(conversationService, logger),
		Notifications: notificationhandler.New(feedService, logger),
		Events:        eventshandler.New(bus, slotsService, conversationService, feedService, logger),

		Admin:      admin.New(jwtService, cfg.JWT.TokenTTL, logger),
		AdminToken: cfg.AdminToken,
	})

	worker := retention.NewWorker(cfg.Retention.CleanupInterval, map[string]retention.Purger{
		"conversations": retention.PurgeFunc(conversationService.PurgeInactive),
		"notifications": retention.PurgeFunc(feedService.PurgeExpired),
	}, retention.WithLogger(logger))

	return &app{
		bus:           bus,
		eventsMetrics: eventsMetrics,
		router:        router,
		retention:     worker,
		closers:       []func() error{opsTracker.Close, securityAuditor.Close, complianceAuditor.Close},
	}
}
