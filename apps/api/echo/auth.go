package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/scope"
	"github.com/trezcool/maabara/core/user"
)

var appJWTConfig = middleware.JWTConfig{
	SigningKey:    []byte(core.Conf.SecretKey),
	SigningMethod: middleware.AlgorithmHS256,
	ContextKey:    "userToken",
	Claims:        new(Claims),
}

type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt  int64      `json:"orig_iat"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Role          scope.Role `json:"role_id"`
	State         string     `json:"state,omitempty"`
	AssignedLabID int        `json:"assigned_lab,omitempty"`
}

// Identity rebuilds the scope principal from a verified token without a DB round trip.
func (c *Claims) Identity() scope.Identity {
	id, _ := strconv.Atoi(c.Subject)
	return scope.Identity{
		UserID:        id,
		Username:      c.Username,
		Email:         c.Email,
		Role:          c.Role,
		State:         c.State,
		AssignedLabID: c.AssignedLabID,
	}
}

func GetUserClaims(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
		},
		OrigIssuedAt:  now.Unix(),
		Username:      usr.Username,
		Email:         usr.Email,
		Role:          usr.Role,
		State:         usr.State,
		AssignedLabID: usr.AssignedLabID,
	}
}

func GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t, err := token.SignedString(appJWTConfig.SigningKey)
	return t, errors.Wrap(err, "signing token")
}

func authenticate(ctx echo.Context, svc user.Service, uname, pwd string) (user.User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx.Request().Context(), uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	return svc.SetLastLogin(ctx.Request().Context(), usr)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token)
	if !ok {
		return Claims{}, middleware.ErrJWTMissing
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Claims{}, middleware.ErrJWTMissing
	}
	return *claims, nil
}

// contextIdentity caches the resolved principal on the request context.
func contextIdentity(ctx echo.Context) (scope.Identity, error) {
	if ident, ok := ctx.Get("identity").(scope.Identity); ok {
		return ident, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return scope.Identity{}, err
	}
	ident := claims.Identity()
	ctx.Set("identity", ident)
	return ident, nil
}

// refreshToken issues a new token off a still-refreshable one; the original
// issue time is carried over so refreshes cannot extend a session forever.
func refreshToken(ctx echo.Context, svc user.Service, claims Claims) (string, error) {
	origIat := time.Unix(claims.OrigIssuedAt, 0)
	if time.Now().After(origIat.Add(core.Conf.Server.JWTRefreshExpirationDelta)) {
		return "", errRefreshExpired
	}

	id, _ := strconv.Atoi(claims.Subject)
	usr, err := svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", errAuthenticationFailed
		}
		return "", err
	}
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	newClaims := GetUserClaims(usr)
	newClaims.OrigIssuedAt = claims.OrigIssuedAt
	return GenerateToken(newClaims)
}
