package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"

	"github.com/facepay/facepay/internal/types"
	"github.com/facepay/facepay/service"
	"github.com/facepay/facepay/storage"
)

type Server struct {
	port     int64
	payments *service.Payment
	faces    *service.Face
	images   *service.ImageStore
	sdClient *statsd.Client
	logger   *logrus.Logger
}

// NewServer returns a new server.
func NewServer(port int64,
	payments *service.Payment,
	faces *service.Face,
	images *service.ImageStore,
	sdClient *statsd.Client) *Server {
	return &Server{
		port:     port,
		payments: payments,
		faces:    faces,
		images:   images,
		sdClient: sdClient,
		logger:   logrus.WithField("service", "api").Logger,
	}
}

// Routes builds the echo instance. Split from StartServer so tests can
// drive the full middleware and handler stack through httptest.
func (s *Server) Routes() *echo.Echo {
	e := echo.New()
	e.Logger.SetLevel(log.DEBUG)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("12M")) // captures ride along as base64 payloads
	e.Use(s.statsdMiddleware)
	e.Use(middleware.CORS())
	limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 10, Burst: 60, ExpiresIn: 5 * time.Minute},
	)
	e.Use(middleware.RateLimiter(limiterStore))
	e.GET("/ping", s.Ping)

	grp := e.Group("/api")
	grp.POST("/transaction-request", s.CreateTransactionRequest)
	grp.GET("/pending-transactions/:walletAddress", s.GetPendingTransactions)
	grp.POST("/transaction-status/:transactionId", s.UpdateTransactionStatus)
	grp.GET("/payment-status/:walletAddress", s.GetPaymentStatus)
	grp.POST("/store-image", s.StoreImage)
	grp.GET("/get-image/:token", s.GetImage)
	grp.POST("/register", s.RegisterFace)
	grp.POST("/verify", s.VerifyFace)
	grp.GET("/faces", s.ListFaces)

	return e
}

func (s *Server) StartServer() error {
	e := s.Routes()
	return e.Start(fmt.Sprintf(":%d", s.port))
}

func (s *Server) statsdMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		duration := time.Since(start).Milliseconds()

		// Send metrics to statsd
		_ = s.sdClient.Incr("http.requests", []string{"path:" + c.Path()}, 1)
		_ = s.sdClient.Timing("http.response_time", time.Duration(duration)*time.Millisecond, []string{"path:" + c.Path()}, 1)
		_ = s.sdClient.Incr("http.status."+fmt.Sprint(c.Response().Status), []string{"path:" + c.Path(), "method:" + c.Request().Method}, 1)

		return err
	}
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Facepay server is running")
}

// CreateTransactionRequest registers a payment approval for the wallet
// holder to pick up on their next poll.
func (s *Server) CreateTransactionRequest(c echo.Context) error {
	var req types.TransactionRequestBody
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, types.TransactionRequestResponse{
			Success: false,
			Message: "fail to parse request",
		})
	}
	if err := req.IsValid(); err != nil {
		return c.JSON(http.StatusBadRequest, types.TransactionRequestResponse{
			Success: false,
			Message: err.Error(),
		})
	}
	if err := s.sdClient.Count("payment.request", 1, nil, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}

	transactionID, err := s.payments.CreateRequest(c.Request().Context(), req)
	if err != nil {
		s.logger.Errorf("fail to create transaction request, err: %v", err)
		return c.JSON(http.StatusInternalServerError, types.TransactionRequestResponse{
			Success: false,
			Message: "fail to create transaction request",
		})
	}
	return c.JSON(http.StatusOK, types.TransactionRequestResponse{
		Success:       true,
		TransactionID: transactionID,
	})
}

// GetPendingTransactions returns the not-yet-shown requests for a
// wallet and marks them shown, so each request reaches exactly one
// poll response.
func (s *Server) GetPendingTransactions(c echo.Context) error {
	walletAddress := c.Param("walletAddress")
	if walletAddress == "" {
		return c.JSON(http.StatusBadRequest, types.PendingTransactionsResponse{Success: false})
	}

	pending, err := s.payments.PollPendingForWallet(c.Request().Context(), walletAddress)
	if err != nil {
		s.logger.Errorf("fail to get pending transactions, err: %v", err)
		return c.JSON(http.StatusInternalServerError, types.PendingTransactionsResponse{Success: false})
	}
	if pending == nil {
		pending = []types.TransactionRequest{}
	}
	return c.JSON(http.StatusOK, types.PendingTransactionsResponse{
		Success:      true,
		Transactions: pending,
	})
}

// UpdateTransactionStatus records the holder's decision for a
// transaction.
func (s *Server) UpdateTransactionStatus(c echo.Context) error {
	transactionID := c.Param("transactionId")
	var req types.StatusUpdateBody
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, types.StatusUpdateResponse{
			Success: false,
			Message: "fail to parse request",
		})
	}
	if err := req.IsValid(); err != nil {
		return c.JSON(http.StatusBadRequest, types.StatusUpdateResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	err := s.payments.UpdateStatus(c.Request().Context(), transactionID, req.Status, req.Signature)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, types.StatusUpdateResponse{
			Success: false,
			Message: "transaction not found",
		})
	}
	if err != nil {
		s.logger.Errorf("fail to update transaction status, err: %v", err)
		return c.JSON(http.StatusInternalServerError, types.StatusUpdateResponse{
			Success: false,
			Message: "fail to update transaction status",
		})
	}
	return c.JSON(http.StatusOK, types.StatusUpdateResponse{Success: true})
}

// GetPaymentStatus returns the latest status snapshot for a wallet, or
// status "none" when nothing is outstanding.
func (s *Server) GetPaymentStatus(c echo.Context) error {
	walletAddress := c.Param("walletAddress")
	if walletAddress == "" {
		return c.JSON(http.StatusBadRequest, types.PaymentStatusResponse{Success: false})
	}

	status, err := s.payments.PollStatusForWallet(c.Request().Context(), walletAddress)
	if err != nil {
		s.logger.Errorf("fail to get payment status, err: %v", err)
		return c.JSON(http.StatusInternalServerError, types.PaymentStatusResponse{Success: false})
	}
	if status == nil {
		return c.JSON(http.StatusOK, types.PaymentStatusResponse{
			Success: true,
			Status:  types.StatusNone,
		})
	}
	return c.JSON(http.StatusOK, types.PaymentStatusResponse{
		Success: true,
		Status:  string(status.Status),
		Payment: status,
	})
}

// StoreImage stashes a captured frame and returns a one-time token the
// verifying client exchanges for it.
func (s *Server) StoreImage(c echo.Context) error {
	var req types.StoreImageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, types.StoreImageResponse{
			Success: false,
			Error:   "fail to parse request",
		})
	}

	token, err := s.images.Put(c.Request().Context(), req.ImageData)
	if errors.Is(err, service.ErrImageTooLarge) {
		return c.JSON(http.StatusRequestEntityTooLarge, types.StoreImageResponse{
			Success: false,
			Error:   "image data too large",
		})
	}
	if err != nil {
		s.logger.Errorf("fail to store image, err: %v", err)
		return c.JSON(http.StatusInternalServerError, types.StoreImageResponse{
			Success: false,
			Error:   "fail to store image",
		})
	}
	return c.JSON(http.StatusOK, types.StoreImageResponse{
		Success: true,
		Token:   token,
	})
}

func (s *Server) GetImage(c echo.Context) error {
	token := c.Param("token")
	imageData, err := s.images.Get(c.Request().Context(), token)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, types.GetImageResponse{
			Success: false,
			Error:   "image not found",
		})
	}
	if err != nil {
		s.logger.Errorf("fail to get image, err: %v", err)
		return c.JSON(http.StatusInternalServerError, types.GetImageResponse{
			Success: false,
			Error:   "fail to get image",
		})
	}
	return c.JSON(http.StatusOK, types.GetImageResponse{
		Success:   true,
		ImageData: imageData,
	})
}

// RegisterFace stores a reference embedding for a subject.
func (s *Server) RegisterFace(c echo.Context) error {
	var req types.RegisterFaceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "fail to parse request",
		})
	}
	if err := req.IsValid(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"message": err.Error(),
		})
	}

	id, err := s.faces.Register(c.Request().Context(), req.Name, req.Embedding)
	if err != nil {
		s.logger.Errorf("fail to register face, err: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "fail to register face",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"id":      id,
	})
}

// VerifyFace scores a candidate embedding against the registry.
func (s *Server) VerifyFace(c echo.Context) error {
	var req types.VerifyFaceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "fail to parse request",
		})
	}
	if err := req.IsValid(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"message": err.Error(),
		})
	}

	match, err := s.faces.Verify(c.Request().Context(), req.Embedding, req.Threshold)
	if err != nil {
		s.logger.Errorf("fail to verify face, err: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "fail to verify face",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"match":   match,
	})
}

func (s *Server) ListFaces(c echo.Context) error {
	subjects, err := s.faces.ListSubjects(c.Request().Context())
	if err != nil {
		s.logger.Errorf("fail to list faces, err: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "fail to list faces",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"faces":   subjects,
	})
}
