package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// ConfigFile marks a directory as an adapter artifact.
	ConfigFile = "adapter_config.json"
	// TrainingFile is the optional companion written by the trainer.
	TrainingFile = "training_config.json"

	idPrefix = "lora_"
)

// Descriptor describes an adapter artifact found on storage.
type Descriptor struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	BaseModel string    `json:"base_model,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created"`
	TrainLoss *float64  `json:"train_loss,omitempty"`
}

// ID is the identifier the admin surface uses for a loaded adapter.
func (d Descriptor) ID() string {
	return idPrefix + d.Name
}

type trainingConfig struct {
	BaseModelName string   `json:"base_model_name"`
	TrainLoss     *float64 `json:"train_loss"`
}

// Scan lists adapter artifacts under root, newest first. A missing root is an
// empty listing, not an error.
func Scan(root string) ([]Descriptor, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Descriptor{}, nil
		}
		return nil, fmt.Errorf("read adapter root: %w", err)
	}

	descriptors := make([]Descriptor, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		desc, err := Describe(filepath.Join(root, entry.Name()))
		if err != nil {
			continue
		}
		descriptors = append(descriptors, desc)
	}

	sort.SliceStable(descriptors, func(i, j int) bool {
		return descriptors[i].CreatedAt.After(descriptors[j].CreatedAt)
	})
	return descriptors, nil
}

// Describe reads a single adapter directory. It fails with ErrAdapterNotFound
// when the directory lacks the adapter config file.
func Describe(dir string) (Descriptor, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrAdapterNotFound, filepath.Base(dir))
	}
	if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %s has no %s", ErrAdapterNotFound, filepath.Base(dir), ConfigFile)
	}

	desc := Descriptor{
		Name:      filepath.Base(dir),
		Path:      dir,
		CreatedAt: info.ModTime(),
		SizeBytes: dirSize(dir),
	}

	// The training companion is optional; a broken one only loses display data
	if raw, err := os.ReadFile(filepath.Join(dir, TrainingFile)); err == nil {
		var tc trainingConfig
		if json.Unmarshal(raw, &tc) == nil {
			desc.BaseModel = tc.BaseModelName
			desc.TrainLoss = tc.TrainLoss
		}
	}

	return desc, nil
}

// NormalizeID accepts either the directory name or the prefixed id.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	return strings.TrimPrefix(id, idPrefix)
}

// ValidName rejects ids that could escape the adapter root.
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func dirSize(dir string) int64 {
	var size int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}
