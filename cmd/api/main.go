package main

import (
	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/handler"
	"marketplace/internal/infra/db"
	"marketplace/internal/infra/notification"
	infraRepo "marketplace/internal/infra/repository"
	"marketplace/internal/server"
	"marketplace/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい（本番は環境変数直指定）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.AuditLog{},
		&model.InventoryAdjustment{},
	); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	//Repository（GORM実装）生成
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//監査の書き手
	audit := usecase.NewAuditRecorder(auditRepo, logger)

	//注文ステータス通知（brokerが無ければ通知なしで動く）
	var notifier usecase.OrderNotifier
	if cfg.KafkaBroker != "" {
		kafkaNotifier := notification.NewKafkaOrderNotifier(cfg.KafkaBroker, cfg.KafkaTopic)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	//Usecase生成
	productUC := usecase.NewProductUsecase(productRepo, inventoryRepo, audit)
	cartUC := usecase.NewCartUsecase(cartRepo, cartItemRepo, productRepo, audit)
	checkoutUC := usecase.NewCheckoutUsecase(txManager, inventoryRepo, productRepo, orderRepo, orderItemRepo, cartRepo, cartItemRepo, audit, logger)
	orderUC := usecase.NewOrderUsecase(txManager, audit, notifier, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, audit, notifier, logger)
	sellerOrderUC := usecase.NewSellerOrderUsecase(txManager, audit)
	returnUC := usecase.NewReturnUsecase(txManager, audit, notifier, logger)
	auditLogUC := usecase.NewAuditLogUsecase(auditRepo)

	//Handler生成
	handlers := server.Handlers{
		Product:       handler.NewProductHandler(productUC),
		Cart:          handler.NewCartHandler(cartUC),
		Order:         handler.NewOrderHandler(checkoutUC, orderUC, returnUC),
		SellerProduct: handler.NewSellerProductHandler(productUC),
		SellerOrder:   handler.NewSellerOrderHandler(sellerOrderUC),
		AdminOrder:    handler.NewAdminOrderHandler(adminOrderUC, returnUC),
		AdminAudit:    handler.NewAdminAuditHandler(auditLogUC),
	}

	//Server起動
	e := server.New(cfg, logger, handlers)
	logger.Info("starting server", zap.String("port", cfg.Port))
	if err := server.Start(e, cfg); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.GoEnv == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
