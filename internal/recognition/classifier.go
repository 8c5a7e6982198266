// Package recognition turns detected face regions into identity decisions and
// drives the unlock gate.
package recognition

import (
	"github.com/kozaktomas/facegate/internal/database"
)

// Decision is the classified identity of one embedding. Label is empty for an
// unknown face; Nearest always carries the closest enrolled label for logging.
type Decision struct {
	Label    string
	Nearest  string
	Distance float64
}

// Known reports whether the embedding matched an enrolled identity.
func (d Decision) Known() bool {
	return d.Label != ""
}

// Classifier applies a distance threshold to nearest-neighbour matches.
type Classifier struct {
	matcher   database.Matcher
	threshold float64
}

// NewClassifier creates a classifier. A match is known only when its distance is
// strictly below threshold.
func NewClassifier(matcher database.Matcher, threshold float64) *Classifier {
	return &Classifier{matcher: matcher, threshold: threshold}
}

// Classify finds the nearest template to query and applies the threshold.
func (c *Classifier) Classify(query database.Vector) (Decision, error) {
	m, err := c.matcher.Nearest(query)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Nearest: m.Label, Distance: m.Distance}
	if m.Known() && m.Distance < c.threshold {
		d.Label = m.Label
	}
	return d, nil
}

// Threshold returns the configured distance threshold.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}
