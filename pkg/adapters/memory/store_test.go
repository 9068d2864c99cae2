package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/canvasbuilder/pkg/adapters/memory"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Now()

	state := domain.NewSessionState("s1", now).WithExchange("undo", "Undoing the last change.", now)
	require.NoError(t, store.Save(ctx, "s1", state))

	state.History[0].Content = "mutated"

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "undo", loaded.History[0].Content)

	loaded.History[1].Content = "mutated"
	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Undoing the last change.", again.History[1].Content)
}
