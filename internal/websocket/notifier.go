package websocket

import (
	"log"

	"uav-fleet-server/internal/domain"
)

// Notifier adapts the connection manager to the event fan-out the services
// expect. Delivery is best effort: a failed marshal or a slow client never
// propagates back into the telemetry pipeline.
type Notifier struct {
	manager *Manager
}

func NewNotifier(manager *Manager) *Notifier {
	return &Notifier{manager: manager}
}

func (n *Notifier) PublishLocationUpdate(event domain.LocationUpdateEvent) {
	n.broadcast(TypeLocationUpdate, event)
}

func (n *Notifier) PublishStatusUpdate(event domain.StatusUpdateEvent) {
	n.broadcast(TypeStatusUpdate, event)
}

// PublishBreach goes to admin connections only; the device owner learns
// about it through the user notice.
func (n *Notifier) PublishBreach(event domain.BreachEvent) {
	message, err := NewMessage(TypeNFZBreach, event)
	if err != nil {
		log.Printf("[Notifier] failed to build breach message: %v", err)
		return
	}
	if err := n.manager.BroadcastToAdmins(message); err != nil {
		log.Printf("[Notifier] failed to broadcast breach: %v", err)
	}
}

func (n *Notifier) PublishUserNotice(event domain.UserNoticeEvent) {
	message, err := NewMessage(TypeUserNotice, event)
	if err != nil {
		log.Printf("[Notifier] failed to build user notice: %v", err)
		return
	}
	if err := n.manager.BroadcastToUser(event.UserID, message); err != nil {
		log.Printf("[Notifier] failed to send user notice: %v", err)
	}
}

func (n *Notifier) broadcast(msgType MessageType, payload interface{}) {
	message, err := NewMessage(msgType, payload)
	if err != nil {
		log.Printf("[Notifier] failed to build %s message: %v", msgType, err)
		return
	}
	if err := n.manager.Broadcast(message); err != nil {
		log.Printf("[Notifier] failed to broadcast %s: %v", msgType, err)
	}
}
