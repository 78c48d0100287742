package ws

import "testing"

func TestHubAddAndRemoveConversationClient(t *testing.T) {
	hub := NewHub()

	hub.AddConversationClient("conv-1", nil, ConnInfo{})
	if len(hub.convRooms) != 1 {
		t.Fatalf("expected conversation room to be created")
	}

	hub.RemoveConversationClient("conv-1", nil)
	if len(hub.convRooms) != 0 {
		t.Fatalf("expected conversation room to be removed")
	}
}

func TestHubAddAndRemovePresenceClient(t *testing.T) {
	hub := NewHub()

	if !hub.PresenceRoomEmpty(2) {
		t.Fatalf("expected presence room to start empty")
	}

	hub.AddPresenceClient(2, nil, ConnInfo{})
	if hub.PresenceRoomEmpty(2) {
		t.Fatalf("expected presence room to be populated")
	}

	hub.RemovePresenceClient(2, nil)
	if !hub.PresenceRoomEmpty(2) {
		t.Fatalf("expected presence room to be removed")
	}
}
