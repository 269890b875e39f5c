package philosopher

import (
	"encoding/json"
	"fmt"
	"os"
)

// Philosopher is a persona a chat can be bound to. Identity is the ID.
type Philosopher struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Seed provides the built-in roster used when no roster file is configured.
func Seed() []Philosopher {
	return []Philosopher{
		{ID: 0, Name: "Socrates"},
		{ID: 1, Name: "Plato"},
		{ID: 2, Name: "Aristotle"},
		{ID: 3, Name: "Confucius"},
		{ID: 4, Name: "Friedrich Nietzsche"},
	}
}

// LoadFile reads a JSON roster of the form [{"id":0,"name":"Socrates"}, ...].
func LoadFile(path string) ([]Philosopher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read philosopher roster: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON roster.
func Parse(data []byte) ([]Philosopher, error) {
	var items []Philosopher
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode philosopher roster: %w", err)
	}

	seen := make(map[int]struct{}, len(items))
	for _, item := range items {
		if item.ID < 0 {
			return nil, fmt.Errorf("invalid philosopher id %d for %q", item.ID, item.Name)
		}
		if item.Name == "" {
			return nil, fmt.Errorf("philosopher %d has no name", item.ID)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("duplicate philosopher id %d", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return items, nil
}
