package service

// Layer groups services for status reporting.
type Layer string

const (
	LayerDomain     Layer = "domain"
	LayerWorker     Layer = "worker"
	LayerCalculator Layer = "calculator"
)

// Descriptor advertises what a service does. It is reported by the system
// status endpoint and does not change runtime behavior.
type Descriptor struct {
	Name         string   `json:"name"`
	Domain       string   `json:"domain"`
	Layer        Layer    `json:"layer"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// WithCapabilities returns a copy of the descriptor with additional
// capabilities appended.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}
