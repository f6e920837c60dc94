package service

import (
	"fmt"
	"time"
)

// Readiness strategy kinds.
const (
	ReadinessHTTP = "http"
	ReadinessLog  = "log"
)

// Readiness declares how a spawned service is judged usable.
// Exactly one strategy applies per descriptor:
//   - http: any HTTP response from URL (including non-2xx) means ready;
//     the services expose their own minimal health contract and a socket
//     that accepts and responds is sufficient.
//   - log: a literal marker the service emits to its own log after a
//     resource-claiming step that is not observable over HTTP.
type Readiness struct {
	Type    string `json:"type" mapstructure:"type"`
	URL     string `json:"url,omitempty" mapstructure:"url"`
	Pattern string `json:"pattern,omitempty" mapstructure:"pattern"`
}

func (r Readiness) Validate(name string) error {
	switch r.Type {
	case ReadinessHTTP:
		if r.URL == "" {
			return fmt.Errorf("service %s: http readiness requires url", name)
		}
		if r.Pattern != "" {
			return fmt.Errorf("service %s: http readiness must not set pattern", name)
		}
	case ReadinessLog:
		if r.Pattern == "" {
			return fmt.Errorf("service %s: log readiness requires pattern", name)
		}
		if r.URL != "" {
			return fmt.Errorf("service %s: log readiness must not set url", name)
		}
	default:
		return fmt.Errorf("service %s: unknown readiness type %q", name, r.Type)
	}
	return nil
}

// Describe returns a short human-readable form used in failure messages.
func (r Readiness) Describe() string {
	if r.Type == ReadinessHTTP {
		return "http:" + r.URL
	}
	return "log:" + r.Pattern
}

// Descriptor describes one service of the fixed launch order.
// Immutable once the run starts.
type Descriptor struct {
	Name      string        `json:"name" mapstructure:"name"`
	Command   string        `json:"command" mapstructure:"command"` // command to start the service (shell-aware)
	WorkDir   string        `json:"work_dir" mapstructure:"work_dir"`
	Env       []string      `json:"env" mapstructure:"env"` // optional extra env
	LogPath   string        `json:"log_path" mapstructure:"log_path"`
	Readiness Readiness     `json:"readiness" mapstructure:"readiness"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"` // startup budget, >= 1s
}

func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("service requires name")
	}
	if d.Command == "" {
		return fmt.Errorf("service %s: command required", d.Name)
	}
	if d.LogPath == "" {
		return fmt.Errorf("service %s: log path required", d.Name)
	}
	if d.Timeout < time.Second {
		return fmt.Errorf("service %s: timeout must be at least 1s, got %v", d.Name, d.Timeout)
	}
	return d.Readiness.Validate(d.Name)
}
