package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ServiceState is the lifecycle state reported for a registered service.
type ServiceState string

const (
	StateRegistered ServiceState = "registered"
	StateRunning    ServiceState = "running"
	StateStopped    ServiceState = "stopped"
	StateFailed     ServiceState = "failed"
)

// ServiceStatus is one row of the manager's status report.
type ServiceStatus struct {
	Name  string       `json:"name"`
	State ServiceState `json:"state"`
	Error string       `json:"error,omitempty"`
}

// Manager starts services in registration order and stops them in reverse.
type Manager struct {
	mu       sync.Mutex
	services []Service
	states   map[string]ServiceStatus
	started  bool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{states: make(map[string]ServiceStatus)}
}

// Register adds a service. Names must be unique and registration must happen
// before Start.
func (m *Manager) Register(svc Service) error {
	if svc == nil {
		return errors.New("service is nil")
	}
	name := svc.Name()
	if name == "" {
		return errors.New("service name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("register %s: manager already started", name)
	}
	if _, exists := m.states[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}
	m.services = append(m.services, svc)
	m.states[name] = ServiceStatus{Name: name, State: StateRegistered}
	return nil
}

// Start starts every service. If one fails, the services already started are
// stopped again and the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	services := append([]Service(nil), m.services...)
	m.started = true
	m.mu.Unlock()

	for i, svc := range services {
		if err := svc.Start(ctx); err != nil {
			m.setState(svc.Name(), StateFailed, err)
			for j := i - 1; j >= 0; j-- {
				_ = services[j].Stop(ctx)
				m.setState(services[j].Name(), StateStopped, nil)
			}
			m.mu.Lock()
			m.started = false
			m.mu.Unlock()
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.setState(svc.Name(), StateRunning, nil)
	}
	return nil
}

// Stop stops every service in reverse order and joins their errors.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	services := append([]Service(nil), m.services...)
	m.started = false
	m.mu.Unlock()

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		if err := svc.Stop(ctx); err != nil {
			m.setState(svc.Name(), StateFailed, err)
			errs = append(errs, fmt.Errorf("stop %s: %w", svc.Name(), err))
			continue
		}
		m.setState(svc.Name(), StateStopped, nil)
	}
	return errors.Join(errs...)
}

// Status lists services in registration order.
func (m *Manager) Status() []ServiceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ServiceStatus, 0, len(m.services))
	for _, svc := range m.services {
		out = append(out, m.states[svc.Name()])
	}
	return out
}

func (m *Manager) setState(name string, state ServiceState, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := ServiceStatus{Name: name, State: state}
	if err != nil {
		status.Error = err.Error()
	}
	m.states[name] = status
}
