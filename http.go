package membership

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// LocalsAccountKey is the fiber locals key holding the authenticated account
const LocalsAccountKey = "account"

// AuthScheme is the Authorization header scheme for session credentials
const AuthScheme = "Token"

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code     string            `json:"code"`
	Category string            `json:"category"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// RespondError writes err as a JSON error body. Errors without a client
// status are reported as a generic server error.
func RespondError(c *fiber.Ctx, err error, logger Logger) error {
	if logger == nil {
		logger = defLogger{}
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal).
			WithTextCode(TextCodeInternal)
	}

	status := richErr.Code
	if status < 400 || status > 599 {
		status = fiber.StatusInternalServerError
	}

	if status >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			"path", c.Path(),
			"error", err,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		return c.Status(status).JSON(ErrorResponse{
			Error: ErrorBody{
				Code:     TextCodeInternal,
				Category: fmt.Sprint(goerrors.CategoryInternal),
				Message:  "internal server error",
			},
		})
	}

	logger.Debug("request rejected",
		"path", c.Path(),
		"text_code", richErr.TextCode,
		"error", richErr.Message,
	)

	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorBody{
			Code:     richErr.TextCode,
			Category: fmt.Sprint(richErr.Category),
			Message:  richErr.Message,
			Fields:   ValidationFields(richErr),
		},
	})
}

// SessionAuth rejects requests without a valid "Authorization: Token <key>"
// header and stores the account in the request context and fiber locals.
func SessionAuth(auther *Authenticator, logger Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, ok := SessionKeyFromHeader(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return RespondError(c, ErrUnauthenticated, logger)
		}

		account, session, err := auther.Authenticate(c.UserContext(), key)
		if err != nil {
			return RespondError(c, err, logger)
		}

		c.Locals(LocalsAccountKey, account)
		ctx := WithContext(c.UserContext(), account)
		ctx = WithSessionContext(ctx, session)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// SessionKeyFromHeader extracts the key of a "Token <key>" header. "Bearer"
// is accepted as well.
func SessionKeyFromHeader(header string) (string, bool) {
	scheme, key, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return "", false
	}

	if !strings.EqualFold(scheme, AuthScheme) && !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	key = strings.TrimSpace(key)
	return key, key != ""
}

// AccountFromCtx returns the account stored by SessionAuth
func AccountFromCtx(c *fiber.Ctx) (*Account, bool) {
	account, ok := c.Locals(LocalsAccountKey).(*Account)
	return account, ok && account != nil
}
