package websocket

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"

	"competition/internal/metrics"
	"competition/internal/models"
	"competition/pkg/utils"
)

// broadcastBufferSize - ёмкость очереди broadcast; при переполнении сообщения отбрасываются
const broadcastBufferSize = 256

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 1024))
	},
}

// Hub управляет активными WebSocket соединениями и рассылает им
// обновления таблицы лидеров.
//
// Использование:
//  1. hub := NewHub()
//  2. go hub.Run()
//  3. hub.BroadcastLeaderboard(entries)
//  4. hub.Stop() при завершении
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu      sync.RWMutex
	dropped atomic.Int64
	log     *utils.Logger
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        utils.L().WithComponent("websocket"),
	}
}

// Run запускает главный цикл Hub. Возвращается после Stop().
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			metrics.SetWebSocketClients(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SetWebSocketClients(n)
			h.log.Debug("client connected", utils.Int("clients", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SetWebSocketClients(n)
			h.log.Debug("client disconnected", utils.Int("clients", n))

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// deliver отправляет сообщение всем клиентам, медленные отключаются
func (h *Hub) deliver(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) == 0 {
		return
	}

	h.mu.Lock()
	for _, client := range toRemove {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
		}
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetWebSocketClients(n)
	h.log.Warn("removed slow clients", utils.Int("removed", len(toRemove)), utils.Int("clients", n))
}

// Stop останавливает Run и закрывает все клиентские каналы
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast сериализует сообщение и ставит его в очередь.
// Не блокирует: при заполненной очереди сообщение отбрасывается.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer jsonBufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Error("marshal broadcast message", utils.Err(err))
		return
	}

	data := bytes.TrimRight(buf.Bytes(), "\n")
	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastLeaderboard рассылает таблицу лидеров
func (h *Hub) BroadcastLeaderboard(entries []models.LeaderboardEntry) {
	h.Broadcast(NewLeaderboardMessage(entries))
}

// BroadcastPerformance рассылает новую доходность трейдера
func (h *Hub) BroadcastPerformance(provider models.Provider, snap *models.PerformanceSnapshot, synthetic bool) {
	if snap == nil {
		return
	}
	h.Broadcast(NewPerformanceMessage(provider, snap, synthetic))
}

// BroadcastSyncCompleted рассылает итог синхронизации
func (h *Hub) BroadcastSyncCompleted(summary *models.SyncSummary) {
	if summary == nil {
		return
	}
	h.Broadcast(NewSyncCompletedMessage(summary))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает число сообщений, отброшенных из-за переполнения очереди
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
