package serialize

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/plus3/arkecs/ecs"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// EntityData is the saved form of one entity. Components are keyed by their
// registered type name, e.g. "particles.Particles".
type EntityData struct {
	Name       string                    `json:"name" yaml:"name"`
	Components map[string]map[string]any `json:"components" yaml:"components"`
}

// Scene is an ordered list of saved entities.
type Scene struct {
	Entities []EntityData `json:"entities" yaml:"entities"`
}

// SaveEntity encodes every component of e.
func SaveEntity(e ecs.Entity) (EntityData, error) {
	storage := e.Storage()
	if !e.Valid() {
		return EntityData{}, eris.Wrapf(ecs.ErrStaleHandle, "save %s", e)
	}
	data := EntityData{
		Name:       e.Name(),
		Components: make(map[string]map[string]any),
	}
	for _, t := range storage.ComponentTypes(e) {
		tree, err := EncodeComponent(storage.GetComponent(e.Id(), t))
		if err != nil {
			return EntityData{}, eris.Wrapf(err, "save %q", data.Name)
		}
		data.Components[t.String()] = tree
	}
	return data, nil
}

// LoadEntity creates an entity from data. Component types must already be
// registered with the storage's registry. On failure the half-built entity is
// destroyed.
func LoadEntity(storage *ecs.Storage, data EntityData) (ecs.Entity, error) {
	e := storage.CreateEntity(data.Name)

	names := make([]string, 0, len(data.Components))
	for name := range data.Components {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := loadComponent(storage, e, name, data.Components[name]); err != nil {
			_ = storage.Destroy(e)
			return ecs.Entity{}, eris.Wrapf(err, "load %q", data.Name)
		}
	}
	e.MarkDirty()
	return e, nil
}

func loadComponent(storage *ecs.Storage, e ecs.Entity, name string, tree map[string]any) error {
	id, ok := storage.Registry().IdByName(name)
	if !ok {
		return eris.Wrapf(ecs.ErrNotRegistered, "%s", name)
	}
	ptr, err := storage.AddComponentById(e, id)
	if err != nil {
		return err
	}
	return DecodeComponent(tree, ptr)
}

// SaveScene encodes every live entity in index order.
func SaveScene(storage *ecs.Storage) (Scene, error) {
	var scene Scene
	for e := range storage.Entities() {
		data, err := SaveEntity(e)
		if err != nil {
			return Scene{}, err
		}
		scene.Entities = append(scene.Entities, data)
	}
	return scene, nil
}

// LoadScene creates every entity of scene. Entities loaded before a failure are
// kept and returned along with the error.
func LoadScene(storage *ecs.Storage, scene Scene) ([]ecs.Entity, error) {
	loaded := make([]ecs.Entity, 0, len(scene.Entities))
	for _, data := range scene.Entities {
		e, err := LoadEntity(storage, data)
		if err != nil {
			return loaded, err
		}
		loaded = append(loaded, e)
	}
	return loaded, nil
}

func MarshalJSON(scene Scene) ([]byte, error) {
	data, err := json.MarshalIndent(scene, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "encode scene json")
	}
	return data, nil
}

func UnmarshalJSON(data []byte) (Scene, error) {
	var scene Scene
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&scene); err != nil {
		return Scene{}, eris.Wrap(err, "decode scene json")
	}
	return scene, nil
}

func MarshalYAML(scene Scene) ([]byte, error) {
	data, err := yaml.Marshal(scene)
	if err != nil {
		return nil, eris.Wrap(err, "encode scene yaml")
	}
	return data, nil
}

func UnmarshalYAML(data []byte) (Scene, error) {
	var scene Scene
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return Scene{}, eris.Wrap(err, "decode scene yaml")
	}
	return scene, nil
}

// ReadSceneFile parses a scene from a .json, .yaml or .yml file.
func ReadSceneFile(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, eris.Wrapf(err, "read scene %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return UnmarshalJSON(data)
	case ".yaml", ".yml":
		return UnmarshalYAML(data)
	}
	return Scene{}, eris.Wrapf(ErrUnsupported, "scene format %q", filepath.Ext(path))
}

// WriteSceneFile writes scene in the format implied by the file extension.
func WriteSceneFile(path string, scene Scene) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = MarshalJSON(scene)
	case ".yaml", ".yml":
		data, err = MarshalYAML(scene)
	default:
		return eris.Wrapf(ErrUnsupported, "scene format %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write scene %s", path)
	}
	return nil
}
