// fastview builds server-side views whose state lives on the server: a data model is
// converted to a view model, multiplexed to one or more views, and each view emits
// element updates that a thin script applies to the browser's DOM over a websocket.
package fastview

import (
	"html/template"
)

// EleUpdate names a DOM element by id and the changes to make to it.
type EleUpdate struct {
	EleId string `json:"id"`
	Ops   []Op   `json:"ops"`
}

// TextContent is the reserved Op key that replaces the element's text rather than an attribute.
const TextContent = "textContent"

// Op sets an attribute, or the text content, of an element.
type Op struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ViewComponent is a view that renders its initial markup into a page template and
// afterwards streams element updates.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse adds the component's template to the parent and returns the name under
	// which the parent should invoke it.
	Parse(*template.Template) (string, error)
}

// MergeUpdates combines two update batches. Where both name the same element, the
// later batch wins; otherwise order is preserved.
func MergeUpdates(earlier, later []EleUpdate) []EleUpdate {
	index := make(map[string]int, len(earlier)+len(later))
	merged := make([]EleUpdate, 0, len(earlier)+len(later))
	for _, batch := range [][]EleUpdate{earlier, later} {
		for _, update := range batch {
			if i, ok := index[update.EleId]; ok {
				merged[i] = update
				continue
			}
			index[update.EleId] = len(merged)
			merged = append(merged, update)
		}
	}
	return merged
}
