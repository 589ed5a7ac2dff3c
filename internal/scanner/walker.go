package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
)

// WarnFunc recibe los avisos del recorrido (rutas que faltan, enlaces...).
// Va por el canal de diagnóstico, nunca mezclado con el informe.
type WarnFunc func(format string, args ...any)

// Config define las reglas para el escaneo.
type Config struct {
	Roots         []string // Raíces a recorrer; vacío = directorio actual
	ExcludeDirs   []string // Nombres de carpeta que nunca se descienden
	IgnoreMissing bool     // No avisar si una raíz no existe
	Warnf         WarnFunc // nil = avisos descartados
}

// FileScanner encapsula la lógica de recorrido del sistema de archivos.
type FileScanner struct {
	cfg        Config
	excludeMap map[string]struct{} // Optimización O(1)
	warnf      WarnFunc
}

// New crea una nueva instancia del escáner con configuración.
func New(cfg Config) *FileScanner {
	// Pre-procesamos excludes a un mapa para búsquedas instantáneas
	exMap := make(map[string]struct{}, len(cfg.ExcludeDirs))
	for _, e := range cfg.ExcludeDirs {
		exMap[e] = struct{}{}
	}

	warnf := cfg.Warnf
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}

	return &FileScanner{
		cfg:        cfg,
		excludeMap: exMap,
		warnf:      warnf,
	}
}

// Walk recorre todas las raíces en orden y llama fn por cada archivo
// candidato con su ruta y tamaño. El orden dentro de cada directorio es el
// léxico de WalkDir, así que dos pasadas sobre el mismo árbol producen la
// misma secuencia.
func (s *FileScanner) Walk(fn func(path string, size int64)) {
	for _, root := range s.cfg.Roots {
		s.walkRoot(root, fn)
	}
}

// walkRoot aplica la política de raíces: los enlaces simbólicos nombrados
// explícitamente avisan y se saltan, las raíces inexistentes avisan salvo
// con IgnoreMissing, un archivo suelto es un candidato único.
func (s *FileScanner) walkRoot(root string, fn func(path string, size int64)) {
	info, err := os.Lstat(root)
	if err != nil {
		if os.IsNotExist(err) {
			if !s.cfg.IgnoreMissing {
				s.warnf("la ruta no existe: %s", root)
			}
			return
		}
		s.warnf("no se pudo acceder a %s: %v", root, err)
		return
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		if _, err := os.Stat(root); err != nil {
			s.warnf("enlace simbólico roto, se omite: %s", root)
		} else {
			s.warnf("enlace simbólico, no se recorre: %s", root)
		}
		return
	}

	if !info.IsDir() {
		if info.Mode().IsRegular() {
			fn(root, info.Size())
		}
		return
	}

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		// 1. Errores de acceso (permisos, etc): seguimos con el resto
		if err != nil {
			return nil
		}

		// 2. Carpetas excluidas por nombre
		if d.IsDir() {
			if _, ok := s.excludeMap[d.Name()]; ok {
				return filepath.SkipDir
			}
			return nil
		}

		// 3. Enlaces simbólicos descendientes: se saltan sin avisar
		if !d.Type().IsRegular() {
			return nil
		}

		// 4. Stat. Si el archivo desapareció entre el listado y aquí, lo
		// saltamos en silencio: es mutación concurrente, no un error.
		fi, err := d.Info()
		if err != nil {
			return nil
		}

		fn(path, fi.Size())
		return nil
	})
}
