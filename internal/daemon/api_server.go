package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"vidtranslate/internal/api"
	"vidtranslate/internal/config"
	"vidtranslate/internal/delivery"
	"vidtranslate/internal/logging"
	"vidtranslate/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	echo   *echo.Echo

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		echo:   e,
	}
	e.HTTPErrorHandler = srv.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(srv.requestContext)

	g := e.Group("/api", bearerAuth(cfg.Paths.APIToken))
	g.POST("/jobs", srv.handleSubmit)
	g.GET("/jobs", srv.handleList)
	g.GET("/jobs/:id", srv.handleJob)
	g.DELETE("/jobs/:id", srv.handleRemove)
	g.GET("/status", srv.handleStatus)
	g.POST("/notifications/test", srv.handleTestNotification)

	// The signed token is the credential for downloads.
	e.GET("/download/:token", srv.handleDownload)

	// No write timeout: downloads stream whole videos.
	srv.server = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.listener = nil
}

func (s *apiServer) addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

// requestContext carries the echo request id into the request context so
// downstream logs correlate.
func (s *apiServer) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
			c.SetRequest(req.WithContext(services.WithRequestID(req.Context(), id)))
		}
		start := time.Now()
		err := next(c)
		logging.WithContext(c.Request().Context(), s.logger).Debug("api request",
			logging.String("method", req.Method),
			logging.String("path", c.Path()),
			logging.Int("status", c.Response().Status),
			logging.Duration("duration", time.Since(start)),
		)
		return err
	}
}

func (s *apiServer) handleSubmit(c echo.Context) error {
	var req api.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, services.Wrap(services.ErrValidation, "", "submit", "invalid request body", err))
	}
	report, err := s.daemon.Submit(c.Request().Context(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, api.JobResponse{Job: report})
}

func (s *apiServer) handleList(c echo.Context) error {
	reports, err := s.daemon.Jobs(c.Request().Context(), c.QueryParams()["status"])
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, api.JobListResponse{Jobs: reports})
}

func (s *apiServer) handleJob(c echo.Context) error {
	report, err := s.daemon.Job(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, api.JobResponse{Job: report})
}

func (s *apiServer) handleRemove(c echo.Context) error {
	id := c.Param("id")
	if err := s.daemon.Remove(c.Request().Context(), id); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, api.RemoveResponse{Removed: true, ID: id})
}

func (s *apiServer) handleStatus(c echo.Context) error {
	status := s.daemon.Status(c.Request().Context())
	return c.JSON(http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		DeliveryDir:  status.DeliveryDir,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.FromDependencies(status.Dependencies),
	})
}

func (s *apiServer) handleTestNotification(c echo.Context) error {
	sent, message, err := s.daemon.TestNotification(c.Request().Context())
	if err != nil {
		return s.writeError(c, services.Wrap(services.ErrTransient, "", "notify", message, err))
	}
	return c.JSON(http.StatusOK, api.NotificationResponse{Sent: sent, Message: message})
}

func (s *apiServer) handleDownload(c echo.Context) error {
	outbox := s.daemon.outbox
	claims, path, err := outbox.Resolve(c.Param("token"))
	switch {
	case errors.Is(err, delivery.ErrTokenExpired):
		return c.JSON(http.StatusGone, api.ErrorResponse{Error: "download link expired", Kind: "expired"})
	case errors.Is(err, delivery.ErrInvalidToken):
		return c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "invalid download link", Kind: "invalid"})
	case err != nil:
		return s.writeError(c, err)
	}

	if err := c.Attachment(path, claims.FileName); err != nil {
		return err
	}

	// A ranged read is a partial download; keep the file for the rest.
	if c.Request().Header.Get("Range") == "" && c.Response().Status == http.StatusOK {
		s.logger.Info("output downloaded",
			logging.String(logging.FieldJobID, claims.JobID),
			logging.String("file", claims.FileName),
			logging.Int64("bytes", c.Response().Size),
			logging.String(logging.FieldEventType, "output_downloaded"),
		)
		outbox.Confirm(claims.JobID)
	}
	return nil
}

func (s *apiServer) writeError(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(c.Request().Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("path", c.Path()),
			logging.Error(err),
		)
	}
	return c.JSON(status, api.ErrorResponse{Error: err.Error(), Kind: services.Kind(err)})
}

// handleError renders framework errors (unknown routes, bad methods, panics)
// in the API error format.
func (s *apiServer) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	message := err.Error()
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		message = fmt.Sprint(httpErr.Message)
	}
	_ = c.JSON(status, api.ErrorResponse{Error: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
