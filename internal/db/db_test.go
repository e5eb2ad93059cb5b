package db_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/db"
	"github.com/SmallTownDocumentary/gallery-backend/internal/testutil"
)

func TestConnectRequiresURL(t *testing.T) {
	_, err := db.Connect(&config.Config{}, zerolog.Nop())
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestNamingStrategy(t *testing.T) {
	assert.Equal(t, "gallery.projects", db.NamingStrategy("gallery").TableName("Project"))
	assert.Equal(t, "projects", db.NamingStrategy("").TableName("Project"))
}

func TestPingAndClose(t *testing.T) {
	gdb := testutil.NewDB(t)
	require.NoError(t, db.Ping(context.Background(), gdb))
	require.NoError(t, db.Close(gdb))
	assert.Error(t, db.Ping(context.Background(), gdb))
}
