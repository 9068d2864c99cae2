package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/canvasbuilder/pkg/domain"
)

type nopStore struct{}

func (nopStore) Save(context.Context, string, domain.SessionState) error { return nil }
func (nopStore) Load(context.Context, string) (domain.SessionState, error) {
	return domain.SessionState{}, nil
}
func (nopStore) Delete(context.Context, string) error   { return nil }
func (nopStore) List(context.Context) ([]string, error) { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Save(ctx, sid, domain.SessionState{SessionID: sid})
		_ = mgr.Delete(ctx, sid)
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
