// Package auth handles both directions of the portal's proxy hop: verifying
// the access tokens presented by dashboard users (JWTs issued by the identity
// provider, verified against its JWKS) and minting the short-lived bearer
// tokens the proxy attaches when forwarding requests to the lab backend on
// behalf of the `x-user-email` caller.
package auth // import "github.com/splunklabhq/splunklab/backend/services/auth"

import (
	"os"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/splunklabhq/splunklab/backend/services/metadata"
	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
)

// Claims are the custom claims we expect on user access tokens.
type Claims struct {
	UserEmail string `json:"https://api.splunklab.io/email"`
	jwt.RegisteredClaims
}

var (
	jwks     *keyfunc.JWKS
	jwksOnce sync.Once
	jwksErr  error
)

// getJWKS fetches (once) the JSON Web Key Set of the identity provider, with
// background refresh so key rotations don't take the portal down.
func getJWKS() (*keyfunc.JWKS, error) {
	jwksOnce.Do(func() {
		jwksURL := os.Getenv("AUTH_JWKS_URL")
		if jwksURL == "" {
			jwksErr = utils.MakeError("couldn't fetch identity provider keys: AUTH_JWKS_URL is uninitialized")
			return
		}

		jwks, jwksErr = keyfunc.Get(jwksURL, keyfunc.Options{
			RefreshInterval:  time.Hour,
			RefreshRateLimit: 5 * time.Minute,
			RefreshErrorHandler: func(err error) {
				// A failed refresh keeps the previous key set; tokens signed
				// with a brand-new key will fail until the next refresh.
			},
		})
	})
	return jwks, jwksErr
}

// ParseToken verifies the given access token against the identity provider's
// key set and returns its claims. On local environments verification is
// skipped and a placeholder identity is returned, so the dashboard works
// without an identity provider running.
func ParseToken(accessToken string) (*Claims, error) {
	if metadata.IsLocalEnv() {
		return &Claims{UserEmail: "localdev@splunklab.io"}, nil
	}

	keys, err := getJWKS()
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, keys.Keyfunc)
	if err != nil {
		return nil, utils.MakeError("couldn't parse access token: %s", err)
	}
	if !token.Valid {
		return nil, utils.MakeError("access token is invalid")
	}
	if claims.UserEmail == "" {
		return nil, utils.MakeError("access token has no email claim")
	}

	return claims, nil
}

// proxyTokenTTL bounds how long a minted upstream bearer stays usable. The
// lab backend enforces expiry on its side as well.
const proxyTokenTTL = 5 * time.Minute

// MintProxyToken creates the bearer token the proxy attaches to upstream lab
// backend requests, carrying the caller's email as the subject. The signing
// secret is shared with the lab backend.
func MintProxyToken(email types.UserEmail, signingSecret string) (types.AccessToken, error) {
	if signingSecret == "" {
		return "", utils.MakeError("couldn't mint proxy token: signing secret is empty")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   string(email),
		Issuer:    "splunklab-portal",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(proxyTokenTTL)),
	})

	signed, err := token.SignedString([]byte(signingSecret))
	if err != nil {
		return "", utils.MakeError("couldn't sign proxy token: %s", err)
	}

	return types.AccessToken(signed), nil
}

// VerifyProxyToken checks a minted proxy token and returns the email it was
// minted for. The lab backend uses the same logic; having it here keeps the
// two sides testable against each other.
func VerifyProxyToken(token types.AccessToken, signingSecret string) (types.UserEmail, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(string(token), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, utils.MakeError("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(signingSecret), nil
	})
	if err != nil {
		return "", utils.MakeError("couldn't parse proxy token: %s", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", utils.MakeError("proxy token is invalid")
	}

	return types.UserEmail(claims.Subject), nil
}
