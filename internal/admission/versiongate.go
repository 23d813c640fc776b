package admission

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// versionGate rejects clients older than a configured minimum version.
type versionGate struct {
	min *semver.Version
}

// newVersionGate parses the configured minimum. An empty minimum disables
// the gate.
func newVersionGate(minVersion string) (*versionGate, error) {
	if minVersion == "" {
		return &versionGate{}, nil
	}
	min, err := semver.NewVersion(minVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid min client version %q: %w", minVersion, err)
	}
	return &versionGate{min: min}, nil
}

// check reports whether the client version passes the gate. Clients that
// send no version are let through: the gate exists to push known-old
// clients to upgrade, not to lock out callers that never report a version.
// A version that does not parse is treated as too old.
func (g *versionGate) check(clientVersion string) bool {
	if g.min == nil || clientVersion == "" {
		return true
	}
	v, err := semver.NewVersion(clientVersion)
	if err != nil {
		return false
	}
	return !v.LessThan(g.min)
}
