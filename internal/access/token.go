package access

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims carried by console bearer tokens.
type Claims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	ClientID string `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenResolver turns HS256 bearer tokens into actors.
type TokenResolver struct {
	secret []byte
}

func NewTokenResolver(secret string) *TokenResolver {
	return &TokenResolver{secret: []byte(secret)}
}

// Issue signs a token for actor valid for ttl.
func (r *TokenResolver) Issue(actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   actor.UserID,
		Role:     string(actor.Role),
		ClientID: actor.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}

// Parse validates a token and returns its actor.
func (r *TokenResolver) Parse(tokenString string) (*Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, jwt.ErrSignatureInvalid)
	}

	role := Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, claims.Role)
	}
	return &Actor{UserID: claims.UserID, Role: role, ClientID: claims.ClientID}, nil
}

// ActorFromRequest reads the Authorization header. A request without one
// resolves to a nil actor and ErrUnauthenticated.
func (r *TokenResolver) ActorFromRequest(req *http.Request) (*Actor, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return nil, ErrUnauthenticated
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.Join(ErrUnauthenticated, errors.New("invalid authorization header format"))
	}
	return r.Parse(strings.TrimSpace(parts[1]))
}
