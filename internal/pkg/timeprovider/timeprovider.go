package timeprovider

import "time"

// Provider exposes the current time. Cursors use it to measure statement
// duration.
type Provider interface {
	Now() time.Time
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() time.Time

func (f ProviderFunc) Now() time.Time {
	return f()
}

// RealProvider delegates to time.Now.
type RealProvider struct{}

func (RealProvider) Now() time.Time {
	return time.Now()
}

// StepProvider starts at Start and advances by Step on every call after the
// first. It makes measured durations deterministic in tests.
type StepProvider struct {
	Start time.Time
	Step  time.Duration
	calls int
}

func (p *StepProvider) Now() time.Time {
	t := p.Start.Add(time.Duration(p.calls) * p.Step)
	p.calls++
	return t
}
