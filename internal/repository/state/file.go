package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/tempmon/internal/config"
)

// RelayState is the persisted manual state of the relays.
type RelayState struct {
	// Timestamp is when the modes last changed.
	Timestamp time.Time
	// Actor is the operator behind the last change, if known.
	Actor string
	// Modes maps relay names to mode names (AUTO, FORCE_ON, FORCE_OFF).
	Modes map[string]string
}

// Repository defines persistence operations for the relay state.
type Repository interface {
	Load(ctx context.Context) (*RelayState, error)
	Save(ctx context.Context, state *RelayState) error
}

// FileRepository persists the relay state to a JSON file on disk.
// The file is a google.protobuf.Struct rendered with protojson.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("state not found")
	// errStateIsNotSet is returned when Save is called with a nil state.
	errStateIsNotSet = errors.New("state is not set")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the state from disk.
func (r *FileRepository) Load(_ context.Context) (*RelayState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromStruct(&document), nil
}

// Save writes the state to disk using JSON representation.
func (r *FileRepository) Save(_ context.Context, state *RelayState) error {
	if state == nil {
		return errStateIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := toStruct(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// fromStruct converts the JSON document into a RelayState.
// Unknown or malformed fields are ignored.
func fromStruct(document *structpb.Struct) *RelayState {
	fields := document.GetFields()
	state := &RelayState{
		Actor: fields["actor"].GetStringValue(),
		Modes: make(map[string]string),
	}

	if ts, err := time.Parse(time.RFC3339Nano, fields["timestamp"].GetStringValue()); err == nil {
		state.Timestamp = ts
	}

	for name, value := range fields["modes"].GetStructValue().GetFields() {
		if mode := value.GetStringValue(); mode != "" {
			state.Modes[name] = mode
		}
	}

	return state
}

// toStruct converts a RelayState into a JSON document.
func toStruct(state *RelayState) (*structpb.Struct, error) {
	modes := make(map[string]any, len(state.Modes))
	for name, mode := range state.Modes {
		modes[name] = mode
	}

	timestamp := ""
	if !state.Timestamp.IsZero() {
		timestamp = state.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	return structpb.NewStruct(map[string]any{
		"timestamp": timestamp,
		"actor":     state.Actor,
		"modes":     modes,
	})
}
