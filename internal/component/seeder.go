package component

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/frameport/frameport/internal/infrastructure/logging"
	"github.com/frameport/frameport/internal/window"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

// Seeder loads component definitions from manifest files on disk. Manifests
// describe static definitions; programmatic definitions with custom
// resolvers and validators register directly on the registry.
type Seeder struct {
	registry *Registry
	dir      string
	log      *logging.Logger
}

// NewSeeder creates a seeder over a manifest directory.
func NewSeeder(registry *Registry, dir string, log *logging.Logger) *Seeder {
	if log == nil {
		log = logging.NewNop()
	}
	return &Seeder{registry: registry, dir: dir, log: log.Component("seeder")}
}

// Seed walks the manifest directory and registers every component manifest
// it finds. A missing directory is not an error; a bad manifest is logged
// and skipped.
func (s *Seeder) Seed() error {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		s.log.Warn("manifest directory not found", zap.String("dir", s.dir))
		return nil
	}

	var loaded, failed int
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(info.Name(), ".component.yaml") &&
			!strings.HasSuffix(info.Name(), ".component.yml") {
			return nil
		}

		if err := s.loadManifest(path); err != nil {
			s.log.Error("manifest rejected", zap.String("file", info.Name()), zap.Error(err))
			failed++
		} else {
			s.log.Info("component registered", zap.String("file", info.Name()))
			loaded++
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("seeding complete", zap.Int("loaded", loaded), zap.Int("failed", failed))
	return nil
}

type manifest struct {
	Tag          string                  `yaml:"tag"`
	URL          any                     `yaml:"url"`
	Domain       any                     `yaml:"domain"`
	BridgeURL    any                     `yaml:"bridge_url"`
	BridgeDomain any                     `yaml:"bridge_domain"`
	Context      string                  `yaml:"context"`
	Dimensions   Dimensions              `yaml:"dimensions"`
	Props        map[string]manifestProp `yaml:"props"`
}

type manifestProp struct {
	Required      bool `yaml:"required"`
	Default       any  `yaml:"default"`
	SendToChild   bool `yaml:"send_to_child"`
	AllowDelegate bool `yaml:"allow_delegate"`
}

func (s *Seeder) loadManifest(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	def, err := m.definition()
	if err != nil {
		return err
	}
	def.Logger = s.log
	return s.registry.Register(def)
}

// definition converts a parsed manifest into a Definition with static
// resolvers.
func (m *manifest) definition() (*Definition, error) {
	def := &Definition{
		Tag:            m.Tag,
		URL:            staticResolver(m.URL),
		Domain:         staticResolver(m.Domain),
		BridgeURL:      staticResolver(m.BridgeURL),
		BridgeDomain:   staticResolver(m.BridgeDomain),
		DefaultContext: window.Kind(m.Context),
		Dimensions:     m.Dimensions,
	}

	if len(m.Props) > 0 {
		def.Props = make(map[string]*PropDef, len(m.Props))
		for name, mp := range m.Props {
			pd := &PropDef{
				Required:      mp.Required,
				SendToChild:   mp.SendToChild,
				AllowDelegate: mp.AllowDelegate,
			}
			if mp.Default != nil {
				value := mp.Default
				pd.Default = func(map[string]any) any { return value }
			}
			def.Props[name] = pd
		}
	}
	return def, nil
}

// staticResolver turns a manifest value into a Resolver. A plain string
// resolves as-is; a mapping is keyed by the instance's env prop, with
// "default" as the fallback key.
func staticResolver(v any) Resolver {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return func(map[string]any) (string, error) { return val, nil }
	case map[string]any:
		byEnv := make(map[string]string, len(val))
		for k, raw := range val {
			if s, ok := raw.(string); ok {
				byEnv[k] = s
			}
		}
		return func(props map[string]any) (string, error) {
			env, _ := props[PropEnv].(string)
			if s, ok := byEnv[env]; ok {
				return s, nil
			}
			if s, ok := byEnv["default"]; ok {
				return s, nil
			}
			return "", fmt.Errorf("no value for env %q", env)
		}
	default:
		return func(map[string]any) (string, error) {
			return "", fmt.Errorf("unsupported manifest value %T", v)
		}
	}
}
