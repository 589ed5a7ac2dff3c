package engine

import (
	"sort"

	"github.com/soyunomas/dupescan/internal/entities"
)

// sortGroups deja los grupos y sus miembros en el orden del informe:
// grupos por bytes redundantes descendente, miembros por fecha ascendente.
func sortGroups(groups []*entities.DuplicateGroup) {
	for _, group := range groups {
		sort.Slice(group.Files, func(i, j int) bool {
			f1 := group.Files[i]
			f2 := group.Files[j]

			// [0] debe ser el más viejo (fecha menor)
			if !f1.ModTime.Equal(f2.ModTime) {
				return f1.ModTime.Before(f2.ModTime)
			}

			// --- DESEMPATE ---
			// Alfabético: determinismo absoluto para una misma foto del
			// sistema de archivos.
			return f1.Path < f2.Path
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		g1 := groups[i]
		g2 := groups[j]

		// (miembros - 1) * tamaño, descendente
		if r1, r2 := g1.RedundantBytes(), g2.RedundantBytes(); r1 != r2 {
			return r1 > r2
		}

		// --- DESEMPATE ---
		// 1. Digest
		if g1.Hash != g2.Hash {
			return g1.Hash < g2.Hash
		}
		// 2. Primera ruta (último recurso)
		return g1.Files[0].Path < g2.Files[0].Path
	})
}
