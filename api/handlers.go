package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"commboard-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Boards, auth Authenticator, deduper Deduper, sink EventSink, logger *log.Logger) {
	e.Use(GzipRequestMiddleware())

	e.GET("/api/boards", getBoards(svc, auth, logger))
	e.POST("/api/boards", postBoard(svc, auth, deduper))
	e.GET("/api/boards/public", getPublicBoards(svc))
	e.GET("/api/boards/:id", getBoard(svc, auth))
	e.POST("/api/boards/:id/cards", postCard(svc, auth))
	e.PUT("/api/cards/reorder", putReorder(svc, auth))
	e.GET("/api/admin/settings", getAdminSettings(svc, auth))
	e.PUT("/api/admin/settings", putAdminSetting(svc, auth))
	e.GET("/healthz", healthz())

	initEventPublisher(sink, logger)
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// optionalActor derives the actor when an Authorization header is present
// and falls back to the anonymous actor when it is not. A present but
// invalid header is still an authentication failure.
func optionalActor(auth Authenticator, c echo.Context) (domain.Actor, error) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return domain.Actor{}, nil
	}
	return auth.ActorFromAuthHeader(h)
}

// writeServiceError maps domain errors onto HTTP responses. Unexpected
// failures are logged and answered with a generic message so no internal
// detail leaks.
func writeServiceError(c echo.Context, err error) error {
	var verr domain.ValidationError
	var lerr domain.LimitExceededError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return c.String(http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return c.String(http.StatusForbidden, err.Error())
	case errors.As(err, &verr):
		return c.String(http.StatusBadRequest, verr.Error())
	case errors.As(err, &lerr):
		return c.JSON(http.StatusForbidden, limitResponse{Error: lerr.Error(), Limit: lerr.Limit, Max: lerr.Max})
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, "internal error")
	}
}

func getBoards(svc Boards, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics := newBoardRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		actor, authErr := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		fetchStart := time.Now()
		boards, fetchErr := svc.ListBoards(ctx, actor)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("fetch")
			err = writeServiceError(c, fetchErr)
			return err
		}
		metrics.SetBoardsReturned(len(boards))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, boards)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postBoard(svc Boards, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actor, err := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createBoardRequest
		if err := decodeStrict(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		idemKey := c.Request().Header.Get("Idempotency-Key")
		if idemKey != "" && deduper != nil {
			added, err := deduper.Add(ctx, actor.ID, idemKey)
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, "internal error")
			}
			if !added {
				return c.String(http.StatusConflict, "duplicate request")
			}
		}

		board, err := svc.CreateBoard(ctx, actor, req.Name, req.Description, req.IsPublic)
		if err != nil {
			if idemKey != "" && deduper != nil {
				if rerr := deduper.Remove(ctx, actor.ID, idemKey); rerr != nil {
					c.Logger().Errorf("dedupe rollback failed: %v", rerr)
				}
			}
			return writeServiceError(c, err)
		}

		publishEvent(domain.BoardEvent{
			Type:    domain.EventBoardCreated,
			BoardID: board.ID,
			ActorID: actor.ID,
			Time:    time.Now().UnixMilli(),
		})
		return c.JSON(http.StatusCreated, board)
	}
}

func getPublicBoards(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		boards, err := svc.ListPublicBoards(c.Request().Context())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, boards)
	}
}

func getBoard(svc Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := optionalActor(auth, c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		board, cards, err := svc.GetBoard(c.Request().Context(), actor, c.Param("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, boardResponse{Board: *board, Cards: cards})
	}
}

func postCard(svc Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var in domain.CardInput
		if err := decodeStrict(c, &in); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		boardID := c.Param("id")
		card, err := svc.CreateCard(c.Request().Context(), actor, boardID, in)
		if err != nil {
			return writeServiceError(c, err)
		}
		publishEvent(domain.BoardEvent{
			Type:    domain.EventCardCreated,
			BoardID: boardID,
			ActorID: actor.ID,
			Time:    time.Now().UnixMilli(),
		})
		return c.JSON(http.StatusCreated, card)
	}
}

func putReorder(svc Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req reorderRequest
		if err := decodeStrict(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := svc.Reorder(c.Request().Context(), actor, req.BoardID, req.CardOrders); err != nil {
			return writeServiceError(c, err)
		}
		publishEvent(domain.BoardEvent{
			Type:    domain.EventCardsReordered,
			BoardID: req.BoardID,
			ActorID: actor.ID,
			Time:    time.Now().UnixMilli(),
		})
		return c.JSON(http.StatusOK, reorderResponse{Success: true})
	}
}

func getAdminSettings(svc Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		view, err := svc.AdminSettings(c.Request().Context(), actor)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, view)
	}
}

func putAdminSetting(svc Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req updateSettingRequest
		if err := decodeStrict(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		setting, err := svc.UpdateSetting(c.Request().Context(), actor, req.Key, req.Value)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, setting)
	}
}

// decodeStrict decodes a JSON body rejecting unknown fields and oversized
// payloads.
func decodeStrict(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
