package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unmesh-12634/HackMate-sub001/internal/application/config"
)

func TestMigrateRequiresCommand(t *testing.T) {
	require.Error(t, migrateCmd.Args(migrateCmd, nil))
	require.NoError(t, migrateCmd.Args(migrateCmd, []string{"up"}))
}

func TestMigrateRequiresArchiveDatabase(t *testing.T) {
	err := runMigrate(context.Background(), &config.Config{}, "up")
	require.ErrorIs(t, err, errArchiveDisabled)
}

func TestRootRegistersSubcommands(t *testing.T) {
	for _, name := range []string{"serve", "migrate", "chat"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
