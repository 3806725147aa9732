package migrations_test

import (
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/adapters/postgres/migrations"
)

func TestMigrationsAreCollectable(t *testing.T) {
	goose.SetBaseFS(migrations.MigrationsFS)
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	collected, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
	require.NoError(t, err)
	require.Len(t, collected, 1)

	assert.Equal(t, int64(20250301120000), collected[0].Version)
}

func TestCreateMessagesHasUpAndDown(t *testing.T) {
	body, err := migrations.MigrationsFS.ReadFile("20250301120000_create_messages.sql")
	require.NoError(t, err)

	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- +goose Down")
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS messages")
}
