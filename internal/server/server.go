package server

import (
	"marketplace/internal/config"
	"marketplace/internal/handler"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Handlers はルート登録に必要なハンドラ一式。
type Handlers struct {
	Product       *handler.ProductHandler
	Cart          *handler.CartHandler
	Order         *handler.OrderHandler
	SellerProduct *handler.SellerProductHandler
	SellerOrder   *handler.SellerOrderHandler
	AdminOrder    *handler.AdminOrderHandler
	AdminAudit    *handler.AdminAuditHandler
}

// New はecho本体を組み立てる。起動はしない（テストからも使う）。
func New(cfg config.Config, logger *zap.Logger, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(logger))

	RegisterRoutes(e, cfg, h)
	return e
}

// Start は組み立て済みサーバーを起動する。
func Start(e *echo.Echo, cfg config.Config) error {
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	return e.Start(addr)
}

// アクセスログ。1リクエスト1行。
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			logger.Info("request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", res.Status),
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)))

			return nil
		}
	}
}
