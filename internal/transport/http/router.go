package http

import (
	"github.com/gin-gonic/gin"
	"github.com/paystream/ledger-service/internal/config"
	"github.com/paystream/ledger-service/internal/service"
	"go.uber.org/zap"
)

func NewRouter(accounts *service.AccountService, transfers *service.TransferService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, accounts, transfers)
	return r
}
