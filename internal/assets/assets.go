// Package assets loads the trained artifacts the risk pipeline depends on:
// classifier, scaler, explainer and the training column schema.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/glycowatch/backend/internal/ml"
	"github.com/glycowatch/backend/internal/schema"
	"github.com/glycowatch/backend/pkg/config"
	"github.com/glycowatch/backend/pkg/logger"
	"github.com/glycowatch/backend/pkg/utils"
)

const (
	KindModel     = "model"
	KindScaler    = "scaler"
	KindExplainer = "explainer"
	KindSchema    = "schema"
)

var ErrAssetLoadFailure = errors.New("asset load failure")

// LoadError names every artifact that could not be loaded.
type LoadError struct {
	Files []string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", strings.Join(e.Files, ", "), e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrAssetLoadFailure, e.Err}
}

type Paths struct {
	Model     string
	Scaler    string
	Explainer string
	Schema    string
}

func PathsFrom(cfg config.AssetsConfig) Paths {
	return Paths{
		Model:     cfg.ModelPath(),
		Scaler:    cfg.ScalerPath(),
		Explainer: cfg.ExplainerPath(),
		Schema:    cfg.SchemaPath(),
	}
}

type Fingerprint struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Handle is the loaded, immutable set of artifacts. It is safe for concurrent
// read-only use.
type Handle struct {
	Model        ml.Model
	Scaler       ml.Scaler
	Explainer    ml.Explainer
	Schema       *schema.Schema
	Fingerprints []Fingerprint
	LoadedAt     time.Time
}

type artifact struct {
	kind string
	path string
	data []byte
	err  error
}

// Load reads all four artifacts concurrently. Any failure fails the whole
// load; a partial Handle is never returned.
func Load(ctx context.Context, paths Paths) (*Handle, error) {
	files := []*artifact{
		{kind: KindModel, path: paths.Model},
		{kind: KindScaler, path: paths.Scaler},
		{kind: KindExplainer, path: paths.Explainer},
		{kind: KindSchema, path: paths.Schema},
	}

	var (
		h = &Handle{}
		g errgroup.Group
	)

	for _, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				f.err = err
				return err
			}
			if f.path == "" {
				f.err = fmt.Errorf("%s path is not configured", f.kind)
				return f.err
			}

			data, err := os.ReadFile(f.path)
			if err != nil {
				f.err = err
				return err
			}
			f.data = data

			switch f.kind {
			case KindModel:
				h.Model, f.err = ml.DecodeModel(data)
			case KindScaler:
				h.Scaler, f.err = ml.DecodeScaler(data)
			case KindSchema:
				h.Schema, f.err = schema.Parse(bytes.NewReader(data))
			}
			return f.err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, collect(files)
	}

	explainerFile := files[2]
	explainer, err := ml.DecodeExplainer(explainerFile.data, h.Model)
	if err != nil {
		explainerFile.err = err
		return nil, collect(files)
	}
	h.Explainer = explainer

	for _, f := range files {
		h.Fingerprints = append(h.Fingerprints, Fingerprint{
			Kind:   f.kind,
			Path:   f.path,
			SHA256: utils.SHA256Hex(f.data),
			Size:   int64(len(f.data)),
		})
	}
	h.LoadedAt = time.Now().UTC()

	warnOnWidth(h)

	logger.Info("Assets loaded",
		zap.Int("columns", h.Schema.Len()),
		zap.String("model", paths.Model),
		zap.String("model_sha256", h.Fingerprints[0].SHA256))

	return h, nil
}

func collect(files []*artifact) error {
	var (
		names []string
		errs  []error
	)
	for _, f := range files {
		if f.err == nil {
			continue
		}
		names = append(names, f.path)
		errs = append(errs, fmt.Errorf("%s: %w", f.kind, f.err))
	}
	return &LoadError{Files: names, Err: errors.Join(errs...)}
}

// Width disagreements are not fatal here; they fail the first assessment with
// a scaling error.
func warnOnWidth(h *Handle) {
	columns := h.Schema.Len()
	if w := h.Scaler.Width(); w != columns {
		logger.Warn("Scaler width does not match feature schema",
			zap.Int("scaler", w), zap.Int("schema", columns))
	}
	if n := h.Model.NumFeatures(); n != columns {
		logger.Warn("Model width does not match feature schema",
			zap.Int("model", n), zap.Int("schema", columns))
	}

	names := h.Schema.Names()
	for _, a := range []any{h.Scaler, h.Model} {
		named, ok := a.(ml.Named)
		if !ok {
			continue
		}
		fitted := named.FeatureNames()
		if len(fitted) > 0 && !slices.Equal(fitted, names) {
			logger.Warn("Artifact feature names differ from training columns",
				zap.Strings("artifact", fitted), zap.Strings("schema", names))
		}
	}
}
