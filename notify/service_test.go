package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localrivet/gomcp/notify"
)

func TestListChangedDeliveredUnconditionally(t *testing.T) {
	svc := notify.NewService(nil)
	ch, unregister := svc.Register("s1")
	defer unregister()

	svc.Publish(notify.KindToolsListChanged, "")

	select {
	case ev := <-ch:
		require.Equal(t, notify.KindToolsListChanged, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected list-changed event")
	}
}

func TestResourceUpdatedRequiresSubscription(t *testing.T) {
	svc := notify.NewService(nil)
	ch, unregister := svc.Register("s1")
	defer unregister()

	svc.Publish(notify.KindResourceUpdated, "file:///a.txt")

	select {
	case <-ch:
		t.Fatal("unsubscribed session should not receive resource update")
	case <-time.After(50 * time.Millisecond):
	}

	svc.Subscribe("s1", "file:///a.txt")
	svc.Publish(notify.KindResourceUpdated, "file:///a.txt")

	select {
	case ev := <-ch:
		require.Equal(t, notify.KindResourceUpdated, ev.Kind)
		require.Equal(t, "file:///a.txt", ev.URI)
	case <-time.After(time.Second):
		t.Fatal("expected resource update after subscribing")
	}
}

func TestResourceUpdatedIgnoresOtherURIs(t *testing.T) {
	svc := notify.NewService(nil)
	ch, unregister := svc.Register("s1")
	defer unregister()

	svc.Subscribe("s1", "file:///a.txt")
	svc.Publish(notify.KindResourceUpdated, "file:///b.txt")

	select {
	case <-ch:
		t.Fatal("should not receive update for a uri not subscribed to")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionNeverSeesEventsBeforeItRegistered(t *testing.T) {
	svc := notify.NewService(nil)
	svc.Publish(notify.KindToolsListChanged, "")

	ch, unregister := svc.Register("late")
	defer unregister()

	svc.Publish(notify.KindPromptsListChanged, "")

	ev := <-ch
	require.Equal(t, notify.KindPromptsListChanged, ev.Kind)
}

func TestUnregisterClosesChannel(t *testing.T) {
	svc := notify.NewService(nil)
	ch, unregister := svc.Register("s1")
	unregister()

	_, ok := <-ch
	require.False(t, ok)
}
