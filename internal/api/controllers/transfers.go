package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v5"

	"github.com/datallboy/gofetch/internal/app"
	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/engine"
)

const defaultHistoryLimit = 50

var validate = validator.New()

type TransferController struct {
	App *app.Context
}

// Create starts a transfer in the background and returns its snapshot.
func (ctrl *TransferController) Create(c *echo.Context) error {
	var req CreateTransferRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	var resolve engine.ConflictResolver
	if req.UseServerName {
		resolve = engine.UseServerName
	}

	info, err := ctrl.App.Manager.Start(c.Request().Context(), engine.Request{
		URL:             req.URL,
		Dir:             req.Dir,
		Name:            req.Name,
		UseMemoryCache:  req.UseMemoryCache,
		ResolveConflict: resolve,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusAccepted, info)
}

func (ctrl *TransferController) List(c *echo.Context) error {
	return c.JSON(http.StatusOK, TransferListResponse{Transfers: ctrl.App.Manager.List()})
}

func (ctrl *TransferController) Get(c *echo.Context) error {
	info, ok := ctrl.App.Manager.Get(c.Param("id"))
	if !ok {
		return writeError(c, domain.ErrTransferNotFound)
	}
	return c.JSON(http.StatusOK, info)
}

// Stop cancels a running transfer and waits for it to settle.
func (ctrl *TransferController) Stop(c *echo.Context) error {
	id := c.Param("id")
	if err := ctrl.App.Manager.Stop(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}

	info, ok := ctrl.App.Manager.Get(id)
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, info)
}

func (ctrl *TransferController) History(c *echo.Context) error {
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = n
	}

	records, err := ctrl.App.Manager.History(c.Request().Context(), limit)
	if err != nil {
		ctrl.App.Logger.Error("history query failed: %v", err)
		return writeError(c, err)
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	return c.JSON(http.StatusOK, HistoryResponse{History: records})
}

func writeError(c *echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrTransferNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrTransferActive):
		status = http.StatusConflict
	}

	resp := ErrorResponse{Error: err.Error()}
	var te *domain.TransferError
	if errors.As(err, &te) {
		resp.Kind = te.Kind.String()
	}
	return c.JSON(status, resp)
}
