package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "shouty"})
	require.Error(t, err)
}

func TestComponentAndWithScopeFields(t *testing.T) {
	core, observed := observer.New(zap.InfoLevel)
	base := &Logger{Logger: zap.New(core)}

	// Both return the wrapper, so scoping chains keep the wrapper's methods.
	var log *Logger = base.Component("engine").With(
		zap.String("tag", "checkout"),
		zap.String("instance", "inst_1"),
	)
	log.Info("rendered")

	entries := observed.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "engine", fields["component"])
	assert.Equal(t, "checkout", fields["tag"])
	assert.Equal(t, "inst_1", fields["instance"])
}
