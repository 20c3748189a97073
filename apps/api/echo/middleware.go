package echoapi

import (
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/urfu-lab/studyhub/core/auth"
)

// newJWTConfig authenticates requests carrying an access token in the Authorization header.
// The parsed *jwt.Token is stored in the context under contextTokenKey.
func newJWTConfig(tokens *auth.Manager) echojwt.Config {
	return echojwt.Config{
		ContextKey:  contextTokenKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(_ echo.Context, raw string) (interface{}, error) {
			token, err := tokens.ParseToken(raw)
			if err != nil {
				return nil, err
			}
			if _, err = token.Claims.(*auth.Claims).Identity(); err != nil {
				return nil, err
			}
			return token, nil
		},
	}
}

func getContextClaims(ctx echo.Context) (*auth.Claims, error) {
	token, ok := ctx.Get(contextTokenKey).(*jwt.Token)
	if !ok {
		return nil, errUnauthorized
	}
	if claims, ok := token.Claims.(*auth.Claims); ok {
		return claims, nil
	}
	return nil, errUnauthorized
}
