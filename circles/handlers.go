package circles

import (
	"context"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-membership"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

type CreateCircleMessage struct {
	Name     string `json:"name" form:"name"`
	SlugName string `json:"slug_name" form:"slug_name"`
	About    string `json:"about" form:"about"`
}

func (e CreateCircleMessage) Type() string { return "circle.create" }

// Validate will run validation rules
func (e CreateCircleMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, validation.Length(1, 140)),
		validation.Field(
			&e.SlugName,
			validation.Required,
			validation.Length(1, 40),
			validation.Match(slugPattern).Error("must contain only letters, numbers, underscores or hyphens"),
		),
		validation.Field(&e.About, validation.Length(0, 255)),
	)
}

type CreateCircleHandler struct {
	repo   Repository
	logger membership.Logger
}

func NewCreateCircleHandler(repo Repository, logger membership.Logger) *CreateCircleHandler {
	if logger == nil {
		logger = membership.NopLogger{}
	}
	return &CreateCircleHandler{repo: repo, logger: logger}
}

// Create validates msg and stores a public, unverified circle owned by
// the account in ctx.
func (h *CreateCircleHandler) Create(ctx context.Context, msg CreateCircleMessage) (*Circle, error) {
	msg.Name = strings.TrimSpace(msg.Name)
	msg.SlugName = strings.TrimSpace(msg.SlugName)

	if err := msg.Validate(); err != nil {
		return nil, membership.NewValidationError("invalid circle payload", membership.TextCodeInvalidInput, membership.FormatValidationErrorToMap(err))
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	circle := &Circle{
		Name:     msg.Name,
		SlugName: msg.SlugName,
		About:    msg.About,
		IsPublic: true,
	}

	if account, ok := membership.FromContext(ctx); ok {
		id := account.ID
		circle.CreatedBy = &id
	}

	out, err := h.repo.Create(ctx, circle)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, membership.WrapStoreError(err, "failed to create circle")
	}

	h.logger.Info("circle created", "slug_name", out.SlugName)

	return out, nil
}

type Controller struct {
	Repo    Repository
	Creator *CreateCircleHandler
	Logger  membership.Logger
}

// RegisterRoutes mounts the circle endpoints. auth guards the routes that
// need a session.
func RegisterRoutes(app fiber.Router, controller *Controller, auth fiber.Handler) {
	if controller.Logger == nil {
		controller.Logger = membership.NopLogger{}
	}
	if controller.Creator == nil {
		controller.Creator = NewCreateCircleHandler(controller.Repo, controller.Logger)
	}

	app.Get("/circles", controller.List).Name("circles.list")
	app.Get("/circles/:slug", controller.Get).Name("circles.get")
	app.Post("/circles", auth, controller.Create).Name("circles.create")
}

func (a *Controller) List(c *fiber.Ctx) error {
	list, err := a.Repo.ListPublic(c.UserContext())
	if err != nil {
		return membership.RespondError(c, err, a.Logger)
	}

	out := make([]Summary, 0, len(list))
	for _, circle := range list {
		out = append(out, circle.Summary())
	}

	return c.JSON(out)
}

func (a *Controller) Get(c *fiber.Ctx) error {
	circle, err := a.Repo.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return membership.RespondError(c, err, a.Logger)
	}
	return c.JSON(circle)
}

func (a *Controller) Create(c *fiber.Ctx) error {
	payload := CreateCircleMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return membership.RespondError(c, membership.NewValidationError("failed to parse request body", membership.TextCodeInvalidInput, map[string]string{
			"body": err.Error(),
		}), a.Logger)
	}

	circle, err := a.Creator.Create(c.UserContext(), payload)
	if err != nil {
		return membership.RespondError(c, err, a.Logger)
	}

	return c.Status(fiber.StatusCreated).JSON(circle)
}
