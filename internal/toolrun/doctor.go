package toolrun

import (
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// Capabilities reports which external tools are installed. The fetcher and
// encoder are required for a run to proceed; a missing prober only degrades
// integrity verification.
type Capabilities struct {
	HasFetcher bool   `json:"has_fetcher"`
	HasEncoder bool   `json:"has_encoder"`
	HasProber  bool   `json:"has_prober"`
	Fetcher    string `json:"fetcher,omitempty"`
	Encoder    string `json:"encoder,omitempty"`
	Prober     string `json:"prober,omitempty"`

	ProbedAt time.Time `json:"probed_at"`
}

// AllRequired reports whether every fatal-for-run tool is present.
func (c Capabilities) AllRequired() bool {
	return c.HasFetcher && c.HasEncoder
}

// Doctor probes the availability of the external tools the pipeline drives.
// Results are cached; a tool installed mid-session is picked up on Refresh.
type Doctor struct {
	fetcherPath string
	encoderPath string
	proberPath  string
	logger      *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewDoctor creates a Doctor for the configured tool paths.
func NewDoctor(fetcherPath, encoderPath, proberPath string, logger *slog.Logger) *Doctor {
	return &Doctor{
		fetcherPath: fetcherPath,
		encoderPath: encoderPath,
		proberPath:  proberPath,
		logger:      logger,
	}
}

// Get returns cached capabilities, probing on first use.
func (d *Doctor) Get() Capabilities {
	d.mu.RLock()
	if d.cached != nil {
		caps := *d.cached
		d.mu.RUnlock()
		return caps
	}
	d.mu.RUnlock()

	return d.Refresh()
}

// Refresh re-probes the tools regardless of cache state.
func (d *Doctor) Refresh() Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := Capabilities{ProbedAt: time.Now()}

	if p, err := exec.LookPath(d.fetcherPath); err == nil {
		caps.HasFetcher = true
		caps.Fetcher = p
	}
	if p, err := exec.LookPath(d.encoderPath); err == nil {
		caps.HasEncoder = true
		caps.Encoder = p
	}
	if p, err := exec.LookPath(d.proberPath); err == nil {
		caps.HasProber = true
		caps.Prober = p
	}

	if d.logger != nil {
		d.logger.Info("tool probe complete",
			"fetcher", caps.HasFetcher,
			"encoder", caps.HasEncoder,
			"prober", caps.HasProber,
		)
		if !caps.HasProber {
			d.logger.Warn("integrity prober not found, downloads will not be verified",
				"tool", d.proberPath,
			)
		}
	}

	d.cached = &caps
	return caps
}

// Invalidate clears the cached capabilities.
func (d *Doctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
