// Package chat keeps contacts and per-peer message history, and relays
// messages through an optional daemon.
package chat

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"cosmterm/pkg/models"
	"cosmterm/pkg/utils"
)

// ErrEmptyAddress is returned when a contact has no address.
var ErrEmptyAddress = errors.New("contact address is empty")

// Book stores contacts and history keyed by peer address. It is safe for
// concurrent use.
type Book struct {
	mu       sync.RWMutex
	contacts map[string]models.Contact
	history  map[string][]models.ChatMessage
	seen     map[string]bool
	read     map[string]int
}

// NewBook returns a book seeded with contacts.
func NewBook(contacts []models.Contact) *Book {
	b := &Book{
		contacts: make(map[string]models.Contact),
		history:  make(map[string][]models.ChatMessage),
		seen:     make(map[string]bool),
		read:     make(map[string]int),
	}
	for _, c := range contacts {
		_ = b.AddContact(c)
	}
	return b
}

// AddContact adds or renames a contact. An empty name defaults to the
// shortened address.
func (b *Book) AddContact(c models.Contact) error {
	c.Address = strings.TrimSpace(c.Address)
	if c.Address == "" {
		return ErrEmptyAddress
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = utils.TruncateMiddle(c.Address, 14)
	}
	b.mu.Lock()
	b.contacts[c.Address] = c
	b.mu.Unlock()
	return nil
}

// RemoveContact drops a contact and reports whether it existed. History is kept.
func (b *Book) RemoveContact(address string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.contacts[address]; !ok {
		return false
	}
	delete(b.contacts, address)
	return true
}

// Contacts returns the contacts sorted by name, then address.
func (b *Book) Contacts() []models.Contact {
	b.mu.RLock()
	out := make([]models.Contact, 0, len(b.contacts))
	for _, c := range b.contacts {
		out = append(out, c)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// Contact looks up a contact by address.
func (b *Book) Contact(address string) (models.Contact, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.contacts[address]
	return c, ok
}

func peerOf(msg models.ChatMessage) string {
	if msg.Outgoing {
		return msg.To
	}
	return msg.From
}

// Append records a message under its peer. Messages with an ID already seen
// are ignored; it reports whether the message was added.
func (b *Book) Append(msg models.ChatMessage) bool {
	peer := peerOf(msg)
	if peer == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg.ID != "" {
		if b.seen[msg.ID] {
			return false
		}
		b.seen[msg.ID] = true
	}
	b.history[peer] = append(b.history[peer], msg)
	return true
}

// History returns a copy of the messages exchanged with address, oldest first.
func (b *Book) History(address string) []models.ChatMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.ChatMessage(nil), b.history[address]...)
}

// Unread counts incoming messages from address since the last MarkRead.
func (b *Book) Unread(address string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, m := range b.history[address][b.read[address]:] {
		if !m.Outgoing {
			n++
		}
	}
	return n
}

// MarkRead marks every message from address as read.
func (b *Book) MarkRead(address string) {
	b.mu.Lock()
	b.read[address] = len(b.history[address])
	b.mu.Unlock()
}
