package controller

import (
	"errors"

	"memory-dashboard-be/internal/dto"
	"memory-dashboard-be/internal/pkg/serverutils"
	"memory-dashboard-be/internal/repository/memory"
	"memory-dashboard-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendMessage(ctx *fiber.Ctx) error
	State(ctx *fiber.Ctx) error
	Sessions(ctx *fiber.Ctx) error
	ActivateSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	NewConversation(ctx *fiber.Ctx) error
	DismissNotice(ctx *fiber.Ctx) error
}

// ChatServiceFactory builds the chat service for a surface the first time it
// is seen. The surface repository caches the result.
type ChatServiceFactory func(userID, surfaceKey string) service.IChatService

type chatController struct {
	surfaces *memory.SurfaceRepository
	factory  ChatServiceFactory
}

func NewChatController(surfaces *memory.SurfaceRepository, factory ChatServiceFactory) IChatController {
	return &chatController{
		surfaces: surfaces,
		factory:  factory,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("message", c.SendMessage)
	h.Get("state", c.State)
	h.Get("sessions", c.Sessions)
	h.Post("sessions/:id/activate", c.ActivateSession)
	h.Delete("sessions/:id", c.DeleteSession)
	h.Post("new", c.NewConversation)
	h.Post("notice/dismiss", c.DismissNotice)
}

func (c *chatController) serviceFor(ctx *fiber.Ctx) service.IChatService {
	userID := ctx.Locals("user_id").(string)
	surfaceID := ctx.Locals("surface_id").(string)
	key := userID + ":" + surfaceID
	return c.surfaces.GetOrCreate(key, func() service.IChatService {
		return c.factory(userID, key)
	})
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.serviceFor(ctx).SendMessage(ctx.Context(), req.Message)
	if err != nil {
		if errors.Is(err, service.ErrBusy) {
			return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(fiber.StatusConflict, "A message is already being processed"))
		}
		if errors.Is(err, service.ErrEmptyMessage) {
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Message must not be empty"))
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatController) State(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get conversation state", c.serviceFor(ctx).State()))
}

func (c *chatController) Sessions(ctx *fiber.Ctx) error {
	svc := c.serviceFor(ctx)
	res := dto.SessionListResponse{Sessions: svc.Sessions(ctx.Context())}
	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", res))
}

// ActivateSession switches the surface to a persisted session. A failed load
// keeps the current conversation; the response carries whatever state the
// surface is left with.
func (c *chatController) ActivateSession(ctx *fiber.Ctx) error {
	svc := c.serviceFor(ctx)
	sessionID := ctx.Params("id")

	if err := svc.SwitchSession(ctx.Context(), sessionID); err != nil {
		if errors.Is(err, service.ErrBusy) {
			return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(fiber.StatusConflict, "A message is already being processed"))
		}
		// Navigation failure is silent: state unchanged.
	}

	return ctx.JSON(serverutils.SuccessResponse("Success activate session", svc.State()))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	svc := c.serviceFor(ctx)
	sessionID := ctx.Params("id")

	if err := svc.DeleteSession(ctx.Context(), sessionID); err != nil {
		if errors.Is(err, service.ErrBusy) {
			return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(fiber.StatusConflict, "A message is already being processed"))
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

func (c *chatController) NewConversation(ctx *fiber.Ctx) error {
	svc := c.serviceFor(ctx)
	if err := svc.StartNewConversation(); err != nil {
		if errors.Is(err, service.ErrBusy) {
			return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(fiber.StatusConflict, "A message is already being processed"))
		}
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success start new conversation", svc.State()))
}

func (c *chatController) DismissNotice(ctx *fiber.Ctx) error {
	svc := c.serviceFor(ctx)
	svc.DismissNotice()
	return ctx.JSON(serverutils.SuccessResponse[any]("Success dismiss notice", nil))
}
