package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"employeehub/internal/domain/scope"
)

type Claims struct {
	UserID     string `json:"uid"`
	RoleID     string `json:"rid"`
	RoleName   string `json:"role"`
	EmployeeID string `json:"eid,omitempty"`
	DataScope  string `json:"scope"`
	jwt.RegisteredClaims
}

// UserContext is the authenticated caller carried on the request context.
type UserContext struct {
	UserID     string      `json:"userId"`
	RoleID     string      `json:"roleId"`
	RoleName   string      `json:"role"`
	EmployeeID string      `json:"employeeId,omitempty"`
	DataScope  scope.Scope `json:"dataScope"`
}

func (u UserContext) Caller() scope.Caller {
	return scope.Caller{UserID: u.UserID, EmployeeID: u.EmployeeID, Scope: u.DataScope}
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// UserFromClaims maps token claims onto a request user. An unknown scope
// claim degrades to own.
func UserFromClaims(c *Claims) UserContext {
	s, err := scope.ParseScope(c.DataScope)
	if err != nil {
		s = scope.ScopeOwn
	}
	return UserContext{
		UserID:     c.UserID,
		RoleID:     c.RoleID,
		RoleName:   c.RoleName,
		EmployeeID: c.EmployeeID,
		DataScope:  s,
	}
}
