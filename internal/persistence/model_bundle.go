package persistence

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/Paul-Berdier/123PandaRoux/internal/models"
	"github.com/Paul-Berdier/123PandaRoux/internal/preprocessing"
)

// FormatVersion is bumped whenever the encoded bundle layout changes.
const FormatVersion uint16 = 1

var magic = []byte("CATNATMB")

// ErrUnsupportedFormat is returned for files that are not model bundles or
// were written by an incompatible version.
var ErrUnsupportedFormat = errors.New("unsupported model bundle format")

func init() {
	gob.Register(&models.GradientBoosting{})
}

// ModelBundle is everything prediction needs to score new rows: the fitted
// model, the feature order it was trained on and how to decode its labels.
type ModelBundle struct {
	Model      models.Model
	Encoder    *preprocessing.LabelEncoder
	Features   []string
	Classes    []int
	Target     string
	DateColumn string
	Metadata   BundleMetadata
	CreatedAt  time.Time
}

type BundleMetadata struct {
	RunID        string             `json:"run_id"`
	ModelName    string             `json:"model_name"`
	Profile      string             `json:"profile"`
	Dataset      string             `json:"dataset"`
	Accuracy     float64            `json:"accuracy"`
	BestScore    float64            `json:"best_score"`
	BestTrial    int                `json:"best_trial"`
	Trials       int                `json:"trials"`
	TrainingTime time.Duration      `json:"training_time_ns"`
	Parameters   map[string]float64 `json:"parameters"`
}

func NewModelBundle(model models.Model, features []string, target string) *ModelBundle {
	return &ModelBundle{
		Model:     model,
		Features:  append([]string(nil), features...),
		Classes:   model.GetClasses(),
		Target:    target,
		CreatedAt: time.Now().UTC(),
		Metadata: BundleMetadata{
			RunID:      uuid.NewString(),
			ModelName:  model.GetName(),
			Parameters: make(map[string]float64),
		},
	}
}

// UsesDate reports whether the date column is one of the model features.
func (mb *ModelBundle) UsesDate() bool {
	for _, f := range mb.Features {
		if f == mb.DateColumn {
			return true
		}
	}
	return false
}

func (mb *ModelBundle) Save(filename string) error {
	return data.WriteFileAtomic(filename, mb.Encode)
}

// Encode writes the header followed by the zstd-compressed gob payload.
func (mb *ModelBundle) Encode(w io.Writer) error {
	if mb.Model == nil {
		return fmt.Errorf("bundle has no model")
	}
	if _, err := w.Write(magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, FormatVersion); err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(mb); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	return zw.Close()
}

func LoadModelBundle(filename string) (*ModelBundle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	bundle, err := Decode(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return bundle, nil
}

func Decode(r io.Reader) (*ModelBundle, error) {
	header := make([]byte, len(magic))
	if _, err := io.ReadFull(r, header); err != nil || !bytes.Equal(header, magic) {
		return nil, ErrUnsupportedFormat
	}
	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, ErrUnsupportedFormat
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, version)
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer zr.Close()

	var bundle ModelBundle
	if err := gob.NewDecoder(zr).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	if bundle.Model == nil {
		return nil, fmt.Errorf("%w: bundle has no model", ErrUnsupportedFormat)
	}
	return &bundle, nil
}

type metadataFile struct {
	BundleMetadata
	CreatedAt  time.Time `json:"created_at"`
	Features   []string  `json:"features"`
	Classes    []int     `json:"classes"`
	Target     string    `json:"target"`
	DateColumn string    `json:"date_column"`
}

// SaveMetadata writes a JSON sidecar describing the bundle.
func (mb *ModelBundle) SaveMetadata(filename string) error {
	doc := metadataFile{
		BundleMetadata: mb.Metadata,
		CreatedAt:      mb.CreatedAt,
		Features:       mb.Features,
		Classes:        mb.Classes,
		Target:         mb.Target,
		DateColumn:     mb.DateColumn,
	}
	return data.WriteFileAtomic(filename, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	})
}
