// Package notices holds the texts of the system notices sent to players.
package notices

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

//go:embed notices.yaml
var defaultFiles embed.FS

// Notice kinds. They double as the "type" field of a system notice.
const (
	RoomFull             = "roomFull"
	RoomExpired          = "roomExpired"
	RateLimited          = "rateLimited"
	GameNotStarted       = "gameNotStarted"
	GameAlreadyEnded     = "gameAlreadyEnded"
	NotYourTurn          = "notYourTurn"
	InvalidMove          = "invalidMove"
	InvalidResult        = "invalidResult"
	DrawAlreadyPending   = "drawAlreadyPending"
	DrawQuotaExhausted   = "drawQuotaExhausted"
	DrawNoOpponent       = "drawNoOpponent"
	DrawNotAddressed     = "drawNotAddressed"
	DrawOffered          = "drawOffered"
	DrawOfferSent        = "drawOfferSent"
	DrawDeclined         = "drawDeclined"
	DrawDeclineSent      = "drawDeclineSent"
	UnknownAction        = "unknownAction"
	OpponentDisconnected = "opponentDisconnected"
	OpponentReconnected  = "opponentReconnected"
	OpponentJoined       = "opponentJoined"
)

// Catalog maps notice kinds to format strings.
type Catalog struct {
	mu   sync.RWMutex
	data map[string]string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog built from the embedded texts.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := New("")
		if err != nil {
			panic("notices: embedded catalog: " + err.Error())
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// New loads the embedded texts and then applies overrides from the yaml
// file at overridePath, if one is given.
func New(overridePath string) (*Catalog, error) {
	c := &Catalog{data: make(map[string]string)}

	raw, err := fs.ReadFile(defaultFiles, "notices.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded notices: %w", err)
	}
	if err := c.apply(raw); err != nil {
		return nil, fmt.Errorf("parse embedded notices: %w", err)
	}

	if strings.TrimSpace(overridePath) != "" {
		raw, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("read notices override: %w", err)
		}
		if err := c.apply(raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", overridePath, err)
		}
	}
	return c, nil
}

func (c *Catalog) apply(raw []byte) error {
	var entries map[string]string
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range entries {
		c.data[k] = v
	}
	return nil
}

// Text renders the notice of the given kind. Unknown kinds render as the
// kind itself so a missing entry never hides a notice.
func (c *Catalog) Text(kind string, args ...any) string {
	c.mu.RLock()
	format, ok := c.data[kind]
	c.mu.RUnlock()

	if !ok {
		return kind
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
