package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/drinkius/gearbot/pkg/bot"
)

// Journal appends every lifecycle notification to a file, one JSON line per
// event. Completed and cancelled orders are indistinguishable in the store;
// the journal is the historical record that disambiguates them.
type Journal struct {
	mu sync.Mutex
	f  *os.File
}

func NewJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{f: f}, nil
}

func (j *Journal) Emit(ev bot.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	fmt.Fprintln(j.f, string(data))
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

var _ bot.Emitter = (*Journal)(nil)
