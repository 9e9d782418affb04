package engine

import (
	"log/slog"
	"sync"
)

// The engine's callback carries an opaque user_data pointer. Passing a Go
// pointer across the FFI is forbidden, so backends register their channel
// sender here and pass the integer token instead. The callback borrows the
// sender by token lookup; the slot lives until Handle.Close releases it, so
// late callbacks from engine threads can never hit freed memory.

type senderBox struct {
	ch     chan<- CallbackMessage
	logger *slog.Logger
}

var senders = struct {
	mu   sync.RWMutex
	next uintptr
	m    map[uintptr]*senderBox
}{m: make(map[uintptr]*senderBox)}

func registerSender(ch chan<- CallbackMessage, logger *slog.Logger) uintptr {
	senders.mu.Lock()
	defer senders.mu.Unlock()
	senders.next++
	token := senders.next
	senders.m[token] = &senderBox{ch: ch, logger: logger}
	return token
}

func lookupSender(token uintptr) *senderBox {
	senders.mu.RLock()
	defer senders.mu.RUnlock()
	return senders.m[token]
}

func releaseSender(token uintptr) {
	senders.mu.Lock()
	defer senders.mu.Unlock()
	delete(senders.m, token)
}
