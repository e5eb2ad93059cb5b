package upload

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrBadTicket = errors.New("upload ticket is invalid")

// TicketClaims bind a stored object to the caller and project it was uploaded for.
type TicketClaims struct {
	ProjectID string `json:"pid"`
	Pathname  string `json:"path"`
	URL       string `json:"url"`
	jwt.RegisteredClaims
}

// Tickets issues and verifies HS256 upload tickets.
type Tickets struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTickets uses secret when set. Without one a random key is drawn, so tickets only
// survive as long as the process.
func NewTickets(secret string, ttl time.Duration) (*Tickets, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate ticket key: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tickets{secret: key, ttl: ttl, now: time.Now}, nil
}

func (t *Tickets) Issue(userID, projectID, pathname, url string) (string, error) {
	now := t.now()
	claims := &TicketClaims{
		ProjectID: projectID,
		Pathname:  pathname,
		URL:       url,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks signature and expiry.
func (t *Tickets) Verify(raw string) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &TicketClaims{}, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadTicket, err)
	}
	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid {
		return nil, ErrBadTicket
	}
	return claims, nil
}
