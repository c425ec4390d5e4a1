package simstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/autotrade/internal/domain"
)

const defaultStateDir = "./wal/simulate"

// Store persists the paper wallet of dry-run mode so restarts keep balances.
type Store struct {
	path string
}

func getStateDir() string {
	if stateDir := os.Getenv("AUTOTRADE_SIMULATE_STATE_DIR"); stateDir != "" {
		return stateDir
	}
	return defaultStateDir
}

// NewStore creates a state store for the given pair under dir
// (AUTOTRADE_SIMULATE_STATE_DIR or ./wal/simulate when empty).
func NewStore(pair domain.Pair, dir string) (*Store, error) {
	if dir == "" {
		dir = getStateDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create simulate state dir")
	}

	fullName := fmt.Sprintf("%s.json", strings.ToLower(pair.String()))
	return &Store{path: filepath.Join(dir, fullName)}, nil
}

// State paper wallet as persisted on disk. Amounts are decimal strings.
type State struct {
	Pair      string            `json:"pair"`
	Wallet    map[string]string `json:"wallet"`
	AvgPrice  map[string]string `json:"avg_buy_price"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Load reads the state; a missing file yields nil.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read simulate state")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode simulate state")
	}
	return &state, nil
}

// Save writes the state atomically via a temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode simulate state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write simulate state temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist simulate state")
	}
	return nil
}

// Encode converts decimal amounts to their stored form.
func Encode(values map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v.String()
	}
	return out
}

// Decode parses stored amounts.
func Decode(values map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(values))
	for k, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, errors.Wrapf(err, "decode simulate amount for %s", k)
		}
		out[k] = d
	}
	return out, nil
}
