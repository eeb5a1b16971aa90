package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"dbgateway/bootstrap"
	"dbgateway/config"
	"dbgateway/controllers"
	_ "dbgateway/docs"
	"dbgateway/pkg/logger"
	"dbgateway/pkg/secrets"
	"dbgateway/services"
	"dbgateway/utils"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           dbgateway
// @version         1.0
// @description     Secure multi-engine database gateway

// @BasePath  /api

func main() {
	// 1) Load config
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("LoadConfig error: %v", err)
	}

	// 2) Init structured logger with config
	logLevel := logger.ParseLogLevel(config.Cfg.LogLevel)
	logger.InitWithConfig(
		config.Cfg.LogFile,
		logLevel,
		config.Cfg.LogMaxSize,
		config.Cfg.LogMaxBackups,
		config.Cfg.LogMaxAge,
		config.Cfg.LogCompress,
	)
	logger.Infof("Starting database gateway with log level: %s", config.Cfg.LogLevel)

	// 3) Build the configuration codec. The key lives for the whole
	// process; there is no per-request derivation.
	codec, err := secrets.NewCodecFromBase64(config.Cfg.EncryptionKey)
	if err != nil {
		logger.Fatalf("GATEWAY_ENCRYPTION_KEY error: %v", err)
	}

	// 4) Connect definition store (GORM) and migrate
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("ConnectDB error: %v", err)
	}
	if config.DB == nil {
		logger.Fatalf("Definition store is nil after ConnectDB")
	}
	if err := bootstrap.Migrate(); err != nil {
		logger.Fatalf("Migrate error: %v", err)
	}

	controllers.SetGatewayService(services.NewGatewayService(codec))

	// 5) Setup Gin
	router := gin.Default()
	router.Use(utils.LoggerMiddleware())

	v1 := router.Group("/api")
	{
		gateway := v1.Group("/gateway")
		gateway.Use(utils.UserIDMiddleware())
		{
			controllers.RegisterGatewayRoutes(gateway)
		}
	}

	// 6) Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 7) Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Infof("Received shutdown signal, stopping gateway")
		os.Exit(0)
	}()

	// 8) Run
	logger.Infof("Starting server at port %s", config.Cfg.Port)
	router.Run("0.0.0.0:" + config.Cfg.Port)
}
