package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewSessionState(sessionID, now).
			WithExchange("add a condition node", "Added a condition node.", now).
			WithCanvas(&domain.CanvasContext{NodeCount: 1, NodeTypes: []string{"condition"}})

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.SessionID)
		require.Len(t, loaded.History, 2)
		assert.Equal(t, "add a condition node", loaded.History[0].Content)
		assert.True(t, now.Equal(loaded.LastActive))
		require.NotNil(t, loaded.Canvas)
		assert.Equal(t, 1, loaded.Canvas.NodeCount)
	})

	t.Run("Pending Clarification Round Trip", func(t *testing.T) {
		req := domain.ClarificationRequest{
			ID:       "q-1",
			Type:     domain.ClarifyIntent,
			Question: "Did you mean to add a node?",
			Options:  []domain.ClarificationOption{{ID: "AddNode", Label: "Add a node"}},
		}
		cls := domain.Classification{Category: domain.IntentAddNode, Confidence: 0.5}
		state := domain.NewSessionState(sessionID, now).WithPendingClarification(req, cls, now)

		require.NoError(t, store.Save(ctx, sessionID, state))
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, loaded.PendingClarification)
		assert.Equal(t, "q-1", loaded.PendingClarification.ID)
		require.NotNil(t, loaded.LastClassification)
		assert.Equal(t, domain.IntentAddNode, loaded.LastClassification.Category)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSessionState(sessionID, now))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSessionState(id1, now))
		_ = store.Save(ctx, id2, domain.NewSessionState(id2, now))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
