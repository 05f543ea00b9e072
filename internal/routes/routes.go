package routes

import (
	"ottsonly-backend/internal/handlers"
	"ottsonly-backend/internal/metrics"
	"ottsonly-backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handler, limiter *middleware.IPRateLimiter) {
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestLogger())
	if limiter != nil {
		r.Use(middleware.RateLimitMiddleware(limiter))
	}

	api := r.Group("/api/v1")
	{
		api.GET("/healthz", h.Healthz)
		api.GET("/metrics", metrics.Handler())

		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		// Catalogue is public; admins see inactive products too.
		products := api.Group("/products")
		products.Use(middleware.OptionalAuth(h.JWTSecret))
		{
			products.GET("", h.ListProducts)
			products.GET("/:id", h.GetProduct)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(h.JWTSecret))
		{
			protected.GET("/profile", h.GetProfile)

			protected.POST("/orders", h.CreateOrder)
			protected.GET("/orders", h.GetMyOrders)
			protected.GET("/orders/:id", h.GetOrderDetail)
			protected.POST("/orders/:id/refund", middleware.AdminOnly(), h.RefundOrder)
			protected.GET("/subscriptions", h.GetMySubscriptions)

			wallet := protected.Group("/wallet")
			{
				wallet.GET("/balance", h.GetWalletBalance)
				wallet.GET("/transactions", h.GetWalletTransactions)
				wallet.POST("/add-money", h.AddMoney)
				wallet.POST("/verify-payment", h.VerifyPayment)
			}

			referrals := protected.Group("/referrals")
			{
				referrals.GET("/dashboard", h.GetReferralDashboard)
				referrals.POST("/apply", h.ApplyReferralCode)
				referrals.POST("/withdraw", h.RequestWithdrawal)
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminOnly())
			{
				admin.GET("/orders", h.GetAllOrders)
				admin.POST("/orders/:id/refund", h.RefundOrder)

				admin.POST("/users/:id/wallet-credit", h.AdminWalletCredit)
				admin.POST("/users/:id/wallet-debit", h.AdminWalletDebit)
				admin.GET("/users/:id/reconcile", h.ReconcileWallet)

				admin.POST("/products", h.CreateProduct)
				admin.PATCH("/products/:id", h.UpdateProduct)
				admin.POST("/products/:id/restock", h.RestockProduct)
				admin.POST("/credentials", h.AddCredential)

				admin.GET("/referrals/stats", h.GetReferralStats)
				admin.GET("/referrals/withdrawals", h.GetWithdrawals)
				admin.PUT("/referrals/withdrawals/:id/process", h.ProcessWithdrawal)
			}
		}
	}
}
