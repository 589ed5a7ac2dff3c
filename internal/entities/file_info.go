package entities

import (
	"time"
)

// FileInfo representa un archivo real (no enlace) en disco con los metadatos
// que necesita el pipeline. QuickHash y FullHash se rellenan en fases
// posteriores; hasta entonces valen cero.
type FileInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
	DeviceID  uint64    `json:"device_id"`
	Inode     uint64    `json:"inode"`
	QuickHash uint64    `json:"quick_hash"`
	FullHash  uint64    `json:"full_hash"`
}

// DuplicateGroup es un conjunto de dos o más rutas con hash completo
// idéntico. Invariante: todos los miembros comparten FullHash y por tanto
// Size; el Size del grupo se toma de un miembro arbitrario.
type DuplicateGroup struct {
	Hash  uint64      `json:"hash"`
	Size  int64       `json:"file_size"`
	Files []*FileInfo `json:"files"`
}

// RedundantBytes devuelve los bytes "de sobra" del grupo contando rutas:
// (miembros - 1) * tamaño. Conservar una copia sale gratis.
func (g *DuplicateGroup) RedundantBytes() int64 {
	if len(g.Files) < 2 {
		return 0
	}
	return int64(len(g.Files)-1) * g.Size
}
