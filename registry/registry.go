// Package registry loads service descriptors from files or a database
// repository and validates them before the route table is built.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/relaygate"
)

// Format is the encoding of a descriptor file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Loader produces the ordered list of service descriptors.
type Loader interface {
	Load(ctx context.Context) ([]relaygate.ServiceDescriptor, error)
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown descriptor file extension %q: %w", filepath.Ext(path), relaygate.ErrInvalidInput)
	}
}

// FileLoader reads descriptors from a JSON or YAML file. The file holds a
// top-level array of descriptors:
//
//	[
//	  {
//	    "id": "users-service",
//	    "gateway_prefix": "/users",
//	    "target_service": {"host_var": "USERS_HOST", "base_path": "/api"},
//	    "timeouts": {"connect_ms": 500, "read_ms": 2000},
//	    "routes": [{"route": "/:id", "methods": ["get"], "auth_required": true}]
//	  }
//	]
type FileLoader struct {
	Path string
}

// Load implements Loader.
func (l FileLoader) Load(_ context.Context) ([]relaygate.ServiceDescriptor, error) {
	return LoadFile(l.Path)
}

// LoadFile reads, parses and validates the descriptor file at path.
func LoadFile(path string) ([]relaygate.ServiceDescriptor, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("read descriptor file: %w", err)
	}

	descs, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return descs, nil
}

// Parse decodes and validates descriptors. Unknown fields are ignored.
func Parse(data []byte, format Format) ([]relaygate.ServiceDescriptor, error) {
	var descs []relaygate.ServiceDescriptor

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &descs); err != nil {
			return nil, fmt.Errorf("parse descriptors: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&descs); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse descriptors: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown descriptor format %q: %w", format, relaygate.ErrInvalidInput)
	}

	if err := Validate(descs); err != nil {
		return nil, err
	}
	return descs, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every descriptor's shape and that ids are unique.
// Unsupported HTTP verbs are not rejected here; the route table builder skips
// them individually.
func Validate(descs []relaygate.ServiceDescriptor) error {
	var errs []error
	ids := make(map[string]int, len(descs))

	for i, d := range descs {
		if err := validate.Struct(d); err != nil {
			errs = append(errs, fmt.Errorf("descriptor %d (%s): %w", i, d.ID, describe(err)))
		}
		if d.ID == "" {
			continue
		}
		if prev, dup := ids[d.ID]; dup {
			errs = append(errs, fmt.Errorf("descriptor %d: id %q already used by descriptor %d", i, d.ID, prev))
			continue
		}
		ids[d.ID] = i
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", relaygate.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "ServiceDescriptor.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// RepoLoader reads descriptors from a ServiceRepo.
type RepoLoader struct {
	Repo relaygate.ServiceRepo
}

// Load implements Loader.
func (l RepoLoader) Load(ctx context.Context) ([]relaygate.ServiceDescriptor, error) {
	descs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	if err := Validate(descs); err != nil {
		return nil, err
	}
	return descs, nil
}

// Import validates descs and upserts them into repo in order.
func Import(ctx context.Context, repo relaygate.ServiceRepo, descs []relaygate.ServiceDescriptor) error {
	if err := Validate(descs); err != nil {
		return err
	}
	for _, d := range descs {
		if err := repo.Upsert(ctx, d); err != nil {
			return fmt.Errorf("import service %s: %w", d.ID, err)
		}
	}
	return nil
}
