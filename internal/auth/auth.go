package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const tokenLifetime = 24 * time.Hour

// Credentials is the login payload. Password hashing is out of scope here;
// accounts are configured, not registered.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

// Claims carries the authenticated buyer id through purchase requests.
type Claims struct {
	jwt.RegisteredClaims
	BuyerID string `json:"buyer_id"`
}

// Service issues and validates buyer tokens.
type Service struct {
	jwtSecret []byte
	accounts  map[string]string // username -> password
}

func NewService(jwtSecret string, accounts map[string]string) *Service {
	if accounts == nil {
		accounts = make(map[string]string)
	}
	return &Service{
		jwtSecret: []byte(jwtSecret),
		accounts:  accounts,
	}
}

func (s *Service) Login(creds Credentials) (*TokenResponse, error) {
	password, ok := s.accounts[creds.Username]
	if !ok || password != creds.Password {
		return nil, ErrInvalidCredentials
	}

	expiration := time.Now().Add(tokenLifetime)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		BuyerID: creds.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{Token: signed, Expiration: expiration}, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.BuyerID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
