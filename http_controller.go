package membership

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Signup, controller.Signup).Name("users.signup")
	app.Post(controller.Routes.Verify, controller.Verify).Name("users.verify")
	app.Post(controller.Routes.Login, controller.Login).Name("users.login")
	app.Get(controller.Routes.Me,
		SessionAuth(controller.Auther, controller.Logger),
		controller.Me,
	).Name("users.me")

	if controller.Repo != nil {
		app.Get(controller.Routes.Health, controller.Health).Name("healthz")
	}

	return controller
}

type AuthControllerRoutes struct {
	Signup string
	Verify string
	Login  string
	Me     string
	Health string
}

type AuthController struct {
	Debug     bool
	Logger    Logger
	Repo      RepositoryManager
	Registrar *RegisterAccountHandler
	Verifier  *VerifyAccountHandler
	Auther    *Authenticator
	Routes    *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithControllerRepository(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerHandlers(registrar *RegisterAccountHandler, verifier *VerifyAccountHandler, auther *Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Registrar = registrar
		c.Verifier = verifier
		c.Auther = auther
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Signup: "/users/signup",
			Verify: "/users/verify",
			Login:  "/users/login",
			Me:     "/users/me",
			Health: "/healthz",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Registrar == nil {
		panic("Missing RegisterAccountHandler in auth controller...")
	}

	if c.Verifier == nil {
		panic("Missing VerifyAccountHandler in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	return c
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	User        PublicAccount `json:"user"`
	AccessToken string        `json:"access_token"`
}

func (a *AuthController) Signup(c *fiber.Ctx) error {
	payload := RegisterAccountMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return RespondError(c, NewValidationError("failed to parse request body", TextCodeInvalidInput, map[string]string{
			"body": err.Error(),
		}), a.Logger)
	}

	if a.Debug {
		a.Logger.Debug("signup payload", "payload", print.MaybePrettyJSON(map[string]string{
			"email":        payload.Email,
			"username":     payload.Username,
			"phone_number": payload.Phone,
		}))
	}

	account, err := a.Registrar.Register(c.UserContext(), payload)
	if err != nil {
		return RespondError(c, err, a.Logger)
	}

	return c.Status(fiber.StatusCreated).JSON(account.Public())
}

func (a *AuthController) Verify(c *fiber.Ctx) error {
	payload := VerifyAccountMessage{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return RespondError(c, NewValidationError("failed to parse request body", TextCodeInvalidInput, map[string]string{
				"body": err.Error(),
			}), a.Logger)
		}
	}

	if payload.Token == "" {
		payload.Token = c.Query("token")
	}

	if err := payload.Validate(); err != nil {
		return RespondError(c, NewValidationError("invalid verification payload", TextCodeInvalidInput, FormatValidationErrorToMap(err)), a.Logger)
	}

	if _, err := a.Verifier.Verify(c.UserContext(), payload.Token); err != nil {
		return RespondError(c, err, a.Logger)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := LoginMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return RespondError(c, NewValidationError("failed to parse request body", TextCodeInvalidInput, map[string]string{
			"body": err.Error(),
		}), a.Logger)
	}

	if err := payload.Validate(); err != nil {
		return RespondError(c, NewValidationError("invalid login payload", TextCodeInvalidInput, FormatValidationErrorToMap(err)), a.Logger)
	}

	result, err := a.Auther.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return RespondError(c, err, a.Logger)
	}

	return c.Status(fiber.StatusCreated).JSON(LoginResponse{
		User:        result.Account.Public(),
		AccessToken: result.Session.Key,
	})
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	account, ok := AccountFromCtx(c)
	if !ok {
		return RespondError(c, ErrUnauthenticated, a.Logger)
	}
	return c.JSON(account.Public())
}

func (a *AuthController) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := a.Repo.Ping(ctx); err != nil {
		return RespondError(c, WrapStoreError(err, "database unreachable"), a.Logger)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
