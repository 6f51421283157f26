package domain

import (
	"encoding/json"

	"github.com/rpattn/scenekit/pkg/dotpath"
)

// Reserved top-level keys of a raw update object. Anything else is
// folded into the entity sub-tree for backward compatibility with
// legacy callers that submitted bare entity updates.
const (
	UpdateKeyEntity       = "actor"
	UpdateKeyPresentation = "token"
	UpdateKeyEmbedded     = "embedded"
)

// UpdateRequest is the normalized form of a raw update object: flat
// dotted-path field maps for the entity and its presentation surface,
// plus named embedded-collection operations. Normalization happens
// once at the boundary; downstream code never re-inspects raw shapes.
type UpdateRequest struct {
	EntityFields       map[string]any            `json:"entityFields,omitempty"`
	PresentationFields map[string]any            `json:"presentationFields,omitempty"`
	Embedded           map[string]EmbeddedUpdate `json:"embedded,omitempty"`
}

// EmbeddedUpdate describes operations on one named embedded collection:
// an ordered list of new child records, partial updates keyed by
// existing child id, or child deletions. Deletes never come from raw
// update objects; revert snapshots use them to remove children a
// mutation created.
type EmbeddedUpdate struct {
	Creates []map[string]any          `json:"creates,omitempty"`
	Updates map[string]map[string]any `json:"updates,omitempty"`
	Deletes []string                  `json:"deletes,omitempty"`
}

// NormalizeUpdate converts a raw update object into an UpdateRequest.
// Sub-trees may mix nested maps and dotted-path keys; both normalize to
// flat dotted-path maps. The legacy presentation "scale" alias expands
// to per-axis scale fields and is discarded.
func NormalizeUpdate(raw map[string]any) UpdateRequest {
	req := UpdateRequest{
		EntityFields:       map[string]any{},
		PresentationFields: map[string]any{},
		Embedded:           map[string]EmbeddedUpdate{},
	}
	if raw == nil {
		return req
	}

	for key, value := range raw {
		switch key {
		case UpdateKeyEntity:
			mergeFlattened(req.EntityFields, value)
		case UpdateKeyPresentation:
			mergeFlattened(req.PresentationFields, value)
		case UpdateKeyEmbedded:
			normalizeEmbedded(req.Embedded, value)
		default:
			// Legacy callers submit entity updates without the
			// reserved wrapper.
			mergeFlattened(req.EntityFields, map[string]any{key: value})
		}
	}

	expandScaleAlias(req.PresentationFields)
	return req
}

// IsEmpty reports whether the request carries no operations at all.
func (u UpdateRequest) IsEmpty() bool {
	return len(u.EntityFields) == 0 && len(u.PresentationFields) == 0 && len(u.Embedded) == 0
}

// Position returns the explicit presentation x/y, if both are present.
func (u UpdateRequest) Position() (x, y float64, ok bool) {
	x, okX := NumberValue(u.PresentationFields[AttrX])
	y, okY := NumberValue(u.PresentationFields[AttrY])
	return x, y, okX && okY
}

func mergeFlattened(dst map[string]any, value any) {
	tree, ok := value.(map[string]any)
	if !ok {
		return
	}
	for path, leaf := range dotpath.Flatten(tree) {
		dst[path] = leaf
	}
}

func normalizeEmbedded(dst map[string]EmbeddedUpdate, value any) {
	collections, ok := value.(map[string]any)
	if !ok {
		return
	}
	for collection, ops := range collections {
		entry := dst[collection]
		switch typed := ops.(type) {
		case []any:
			for _, record := range typed {
				fields, ok := record.(map[string]any)
				if !ok {
					continue
				}
				// Creates persist as whole attribute trees, so dotted
				// keys expand to nested maps instead of staying flat.
				entry.Creates = append(entry.Creates, dotpath.Expand(dotpath.Flatten(fields)))
			}
		case map[string]any:
			if entry.Updates == nil {
				entry.Updates = map[string]map[string]any{}
			}
			for childID, partial := range typed {
				fields, ok := partial.(map[string]any)
				if !ok {
					continue
				}
				entry.Updates[childID] = dotpath.Flatten(fields)
			}
		}
		dst[collection] = entry
	}
}

func expandScaleAlias(fields map[string]any) {
	scale, ok := fields[AttrScale]
	if !ok {
		return
	}
	delete(fields, AttrScale)
	value, ok := NumberValue(scale)
	if !ok {
		return
	}
	if _, present := fields[AttrScaleX]; !present {
		fields[AttrScaleX] = value
	}
	if _, present := fields[AttrScaleY]; !present {
		fields[AttrScaleY] = value
	}
}

// NumberValue coerces a JSON-decoded value to float64.
func NumberValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
