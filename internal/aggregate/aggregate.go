// Package aggregate merges content items that describe the same identity.
package aggregate

import "github.com/CosmoTheDev/hubwatch/models"

// Merge returns one item per identity key, in order of first appearance.
// Items sharing a key are folded with ContentItem.Merge. The input is not
// modified.
func Merge(items []models.ContentItem) []models.ContentItem {
	if len(items) == 0 {
		return nil
	}
	index := make(map[models.IdentityKey]int, len(items))
	out := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		key := item.Key()
		if i, ok := index[key]; ok {
			out[i] = out[i].Merge(item)
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out
}
