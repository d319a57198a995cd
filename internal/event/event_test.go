package event

import (
	"context"
	"errors"
	"testing"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Event
	}{
		{"auth identity created", AuthIdentityCreated{AuthID: "auth-1", ProfileID: "profile-1", FirstName: "Ada", LastName: "Lovelace", Age: 36}},
		{"profile creation failed", ProfileCreationFailed{AuthID: "auth-1", ProfileID: "profile-1", Reason: "duplicate auth_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			out, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if out != tt.in {
				t.Errorf("round trip = %#v, want %#v", out, tt.in)
			}
		})
	}
}

func TestUnmarshalUnknownEvent(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"name":"something.else","payload":{}}`)); err == nil {
		t.Error("expected error for unknown event name")
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed envelope")
	}
}

func TestMemoryBusDeliversInOrder(t *testing.T) {
	bus := NewMemoryBus()
	var got []string
	bus.Subscribe(func(ctx context.Context, e Event) error {
		got = append(got, "first:"+e.EventName())
		return nil
	})
	bus.Subscribe(func(ctx context.Context, e Event) error {
		got = append(got, "second:"+e.EventName())
		return nil
	})

	if err := bus.Publish(context.Background(), AuthIdentityCreated{AuthID: "auth-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := []string{"first:" + NameAuthIdentityCreated, "second:" + NameAuthIdentityCreated}
	if len(got) != len(want) {
		t.Fatalf("deliveries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMemoryBusContinuesAfterHandlerError(t *testing.T) {
	bus := NewMemoryBus()
	boom := errors.New("boom")
	var secondCalled bool
	bus.Subscribe(func(ctx context.Context, e Event) error { return boom })
	bus.Subscribe(func(ctx context.Context, e Event) error {
		secondCalled = true
		return nil
	})

	err := bus.Publish(context.Background(), ProfileCreationFailed{AuthID: "auth-1"})
	if !errors.Is(err, boom) {
		t.Errorf("Publish error = %v, want to wrap %v", err, boom)
	}
	if !secondCalled {
		t.Error("second handler was not invoked after first failed")
	}
}

func TestMemoryBusNoSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	if err := bus.Publish(context.Background(), AuthIdentityCreated{AuthID: "auth-1"}); err != nil {
		t.Fatalf("Publish with no subscribers: %v", err)
	}
}
