package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"uav-fleet-server/internal/domain"
)

// Manager tracks live connections and routes outbound messages. Audience
// routing has three scopes: everyone, admins only, or one user's
// connections.
type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool
	adminIndex     map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	maxConnPerUser int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
}

func NewManager(maxConnPerUser int, writeWait, pongWait, pingPeriod time.Duration) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]bool),
		adminIndex:     make(map[string]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		maxConnPerUser: maxConnPerUser,
		writeWait:      writeWait,
		pongWait:       pongWait,
		pingPeriod:     pingPeriod,
	}
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}

	if len(m.userIndex[client.UserID]) >= m.maxConnPerUser {
		log.Printf("max connections reached for user %s", client.UserID)
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true
	if client.Role == string(domain.RoleAdmin) {
		m.adminIndex[client.ID] = true
	}

	log.Printf("client registered: %s (user: %s, role: %s)", client.ID, client.UserID, client.Role)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.userIndex[client.UserID], client.ID)
		delete(m.adminIndex, client.ID)

		if len(m.userIndex[client.UserID]) == 0 {
			delete(m.userIndex, client.UserID)
		}

		close(client.Send)
		log.Printf("client unregistered: %s", client.ID)
	}
}

// Broadcast sends the message to every connected client.
func (m *Manager) Broadcast(message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	for _, client := range m.clients {
		m.send(client, messageBytes)
	}

	return nil
}

// BroadcastToAdmins sends the message to every admin connection.
func (m *Manager) BroadcastToAdmins(message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	for clientID := range m.adminIndex {
		m.send(m.clients[clientID], messageBytes)
	}

	return nil
}

// BroadcastToUser sends the message to every connection of one user.
func (m *Manager) BroadcastToUser(userID string, message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	clientIDs, exists := m.userIndex[userID]
	if !exists {
		return nil
	}

	for clientID := range clientIDs {
		m.send(m.clients[clientID], messageBytes)
	}

	return nil
}

// send never blocks: a client that cannot keep up gets evicted rather than
// stalling delivery to everyone else.
func (m *Manager) send(client *Client, messageBytes []byte) {
	select {
	case client.Send <- messageBytes:
	default:
		log.Printf("client %s send buffer full, closing connection", client.ID)
		go func() { m.Unregister <- client }()
	}
}

func (m *Manager) GetUserConnections(userID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if clients, exists := m.userIndex[userID]; exists {
		return len(clients)
	}
	return 0
}
