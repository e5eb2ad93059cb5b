// Package testutil provides an in-memory database for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SmallTownDocumentary/gallery-backend/internal/db"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
)

var seq atomic.Int64

// NewDB opens a fresh, migrated SQLite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=1", name, seq.Add(1))

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// A single connection keeps the shared in-memory database alive and serialises writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb, ""))
	return gdb
}

// CreateUser inserts a user with the given role.
func CreateUser(t *testing.T, gdb *gorm.DB, email, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: name, PasswordHash: "x", Role: role}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

func CreateTown(t *testing.T, gdb *gorm.DB, name string) *models.Town {
	t.Helper()
	town := &models.Town{Name: name, State: "Illinois"}
	require.NoError(t, gdb.Create(town).Error)
	return town
}

// CreateProject inserts a project with n photos named p0.jpg..p<n-1>.jpg in order.
func CreateProject(t *testing.T, gdb *gorm.DB, town *models.Town, owner *models.User, year int, published bool, n int) *models.Project {
	t.Helper()
	p := &models.Project{
		TownID:       town.ID,
		UserID:       owner.ID,
		Year:         year,
		Photographer: owner.Name,
		Published:    published,
		PhotoCount:   n,
	}
	require.NoError(t, gdb.Create(p).Error)
	for i := 0; i < n; i++ {
		ph := &models.Photo{
			ProjectID: p.ID,
			UserID:    owner.ID,
			Filename:  fmt.Sprintf("p%d.jpg", i),
			BlobURL:   fmt.Sprintf("https://cdn.test/projects/%s/p%d.jpg", p.ID, i),
			Pathname:  fmt.Sprintf("projects/%s/p%d.jpg", p.ID, i),
			Width:     1200,
			Height:    800,
			Order:     i,
		}
		require.NoError(t, gdb.Create(ph).Error)
		p.Photos = append(p.Photos, *ph)
	}
	return p
}
