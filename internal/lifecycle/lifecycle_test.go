package lifecycle

import (
	"context"
	"os"
	"testing"
)

func TestShutdownSignalsIncludeInterrupt(t *testing.T) {
	sigs := ShutdownSignals()
	found := false
	for _, s := range sigs {
		if s == os.Interrupt {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected os.Interrupt in %v", sigs)
	}

	sigs[0] = nil
	if ShutdownSignals()[0] == nil {
		t.Fatal("ShutdownSignals must return a copy")
	}
}

func TestWithShutdownFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := WithShutdown(parent)
	defer stop()

	cancel()
	<-ctx.Done()
	if ctx.Err() == nil {
		t.Fatal("expected context to be cancelled with its parent")
	}
}
