package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/AlexZinkM/abc-core/docs"
	"github.com/AlexZinkM/abc-core/internal/handler"
	"github.com/AlexZinkM/abc-core/internal/server"
)

// SetupRouter sets up router with handlers
func SetupRouter(svc *server.Service, log *zap.Logger) http.Handler {
	loginHandler := handler.NewLoginHandler(svc, log)
	lobbyHandler := handler.NewLobbyHandler(svc, log)

	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Login endpoints
	mux.HandleFunc("/api/v2/login", loginHandler.Login)
	mux.HandleFunc("/api/v2/login/create", loginHandler.Create)
	mux.HandleFunc("/api/v2/login/password", loginHandler.Password)
	mux.HandleFunc("/api/v2/login/pin2", loginHandler.Pin2)
	mux.HandleFunc("/api/v2/login/recovery2", loginHandler.Recovery2)
	mux.HandleFunc("/api/v2/login/recovery2/questions", loginHandler.Recovery2Questions)
	mux.HandleFunc("/api/v2/login/wallets", loginHandler.Wallets)
	mux.HandleFunc("/api/v2/questions", loginHandler.Questions)
	mux.HandleFunc("/api/v2/users/available", loginHandler.UsernameAvailable)

	// OTP endpoints
	mux.HandleFunc("/api/v2/login/otp", loginHandler.Otp)
	mux.HandleFunc("/api/v2/login/otp/reset", loginHandler.CancelOtpReset)
	mux.HandleFunc("/api/v2/otp/reset", loginHandler.RequestOtpReset)

	// Edge login lobby
	mux.HandleFunc("/api/v2/lobby/{id}", lobbyHandler.Lobby)

	return mux
}
