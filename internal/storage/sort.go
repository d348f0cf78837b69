package storage

import (
	"slices"
	"strings"

	"github.com/mcoot/boardgame-groups/internal/model"
)

// SortPlays orders plays newest first, breaking ties by ID so listings are
// stable across backends
func SortPlays(plays []*model.Play) {
	slices.SortFunc(plays, func(a, b *model.Play) int {
		if c := b.PlayedAt.Compare(a.PlayedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
}
