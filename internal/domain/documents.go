package domain

// DocumentKey identifies one of the fixed documents a property may publish.
type DocumentKey string

const (
	DocumentRegulation        DocumentKey = "regulation"
	DocumentCoexistenceManual DocumentKey = "coexistence_manual"
	DocumentCommonAreaPolicy  DocumentKey = "common_area_policy"
)

// DocumentKeys lists the catalog keys in menu order.
var DocumentKeys = []DocumentKey{
	DocumentRegulation,
	DocumentCoexistenceManual,
	DocumentCommonAreaPolicy,
}

var documentTitles = map[DocumentKey]string{
	DocumentRegulation:        "Reglamento del condominio",
	DocumentCoexistenceManual: "Manual de convivencia",
	DocumentCommonAreaPolicy:  "Política de uso de áreas comunes",
}

// Title returns the Spanish display title for the key.
func (k DocumentKey) Title() string {
	if t, ok := documentTitles[k]; ok {
		return t
	}
	return string(k)
}

// DocumentEntry is one selectable document in the rendered menu. Reference
// is the object path of the document in storage.
type DocumentEntry struct {
	Index     int         `json:"index"`
	Key       DocumentKey `json:"key"`
	Title     string      `json:"title"`
	Reference string      `json:"reference"`
}

// BuildDocumentMenu keeps only the catalog keys that are present, in fixed
// order, numbered from 1. Unknown keys are ignored.
func BuildDocumentMenu(catalog map[DocumentKey]string) []DocumentEntry {
	entries := make([]DocumentEntry, 0, len(DocumentKeys))
	for _, key := range DocumentKeys {
		ref, ok := catalog[key]
		if !ok || ref == "" {
			continue
		}
		entries = append(entries, DocumentEntry{
			Index:     len(entries) + 1,
			Key:       key,
			Title:     key.Title(),
			Reference: ref,
		})
	}
	return entries
}
