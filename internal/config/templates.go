package config

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

// DefaultTemplates are the RF equipment profiles the service ships with.
var DefaultTemplates = []domain.Template{
	{
		ID:           "Brazil_V6",
		Name:         "Brazil V6",
		Frequency:    915,
		ColourKey:    "IRRICONTRO.dBm",
		Site:         "Brazil_V6",
		PowerW:       0.3,
		BandwidthMHz: 0.1,
		RxHeight:     3,
		RxGain:       3,
		RxSens:       -90,
		TxGain:       3,
		FrontBack:    3,
	},
	{
		ID:           "Europe_V6_XR",
		Name:         "Europe V6 XR",
		Frequency:    868,
		ColourKey:    "IRRIEUROPE.dBm",
		Site:         "V6_XR.dBm",
		PowerW:       0.02,
		BandwidthMHz: 0.05,
		RxHeight:     3,
		RxGain:       2.1,
		RxSens:       -105,
		TxGain:       2.1,
		FrontBack:    2.1,
	},
}

// Templates is an immutable lookup table of RF templates.
type Templates struct {
	byID map[string]domain.Template
	ids  []string
}

// NewTemplateRegistry copies templates into a registry. Later duplicates of
// an id are rejected.
func NewTemplateRegistry(templates []domain.Template) (*Templates, error) {
	r := &Templates{byID: make(map[string]domain.Template, len(templates))}
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template %q has no id", t.Name)
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		r.byID[t.ID] = t
		r.ids = append(r.ids, t.ID)
	}
	return r, nil
}

// Lookup returns the template with the given id.
func (r *Templates) Lookup(id string) (domain.Template, error) {
	t, ok := r.byID[id]
	if !ok {
		return domain.Template{}, fmt.Errorf("%w: %q", domain.ErrUnknownTemplate, id)
	}
	return t, nil
}

// IDs returns the template ids in registration order.
func (r *Templates) IDs() []string {
	return slices.Clone(r.ids)
}

// All returns the templates in registration order.
func (r *Templates) All() []domain.Template {
	out := make([]domain.Template, len(r.ids))
	for i, id := range r.ids {
		out[i] = r.byID[id]
	}
	return out
}
