package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRoundTrip(t *testing.T) {
	tickets, err := NewTickets("secret", time.Hour)
	require.NoError(t, err)

	raw, err := tickets.Issue("user-1", "project-1", "projects/project-1/a.jpg", "https://cdn.test/projects/project-1/a.jpg")
	require.NoError(t, err)

	c, err := tickets.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.Subject)
	assert.Equal(t, "project-1", c.ProjectID)
	assert.Equal(t, "projects/project-1/a.jpg", c.Pathname)
	assert.Equal(t, "https://cdn.test/projects/project-1/a.jpg", c.URL)
}

func TestTicketRejectsForeignKeyAndExpiry(t *testing.T) {
	issuer, err := NewTickets("secret", time.Minute)
	require.NoError(t, err)
	raw, err := issuer.Issue("u", "p", "k", "url")
	require.NoError(t, err)

	other, err := NewTickets("other-secret", time.Minute)
	require.NoError(t, err)
	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, ErrBadTicket)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Verify(raw)
	assert.ErrorIs(t, err, ErrBadTicket)

	_, err = issuer.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrBadTicket)
}

func TestRandomKeyWhenSecretMissing(t *testing.T) {
	a, err := NewTickets("", 0)
	require.NoError(t, err)
	b, err := NewTickets("", 0)
	require.NoError(t, err)
	assert.Len(t, a.secret, 32)
	assert.Equal(t, time.Hour, a.ttl)

	raw, err := a.Issue("u", "p", "k", "url")
	require.NoError(t, err)
	_, err = b.Verify(raw)
	assert.Error(t, err)
}

func TestJPEGName(t *testing.T) {
	assert.Equal(t, "scan.jpg", jpegName("scan.png"))
	assert.Equal(t, "scan.JPEG", jpegName("scan.JPEG"))
	assert.Equal(t, "scan.jpg", jpegName("scan"))
}
