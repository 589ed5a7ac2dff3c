package engine

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/hasher"
	"github.com/soyunomas/dupescan/internal/scanner"
)

// ErrBucketInconsistente señala una violación interna de consistencia en los
// buckets de tamaño. Es un defecto de lógica, no un problema del entorno:
// el escaneo se aborta antes que producir un informe silenciosamente malo.
var ErrBucketInconsistente = errors.New("bucket de tamaño inconsistente")

// Hasher abstrae el cálculo de huellas. El valor por defecto usa
// internal/hasher; los tests lo envuelven para contar invocaciones.
type Hasher interface {
	QuickHash(path string) (uint64, error)
	FullHash(path string) (uint64, error)
}

type defaultHasher struct{}

func (defaultHasher) QuickHash(path string) (uint64, error) { return hasher.HashFirstBlock(path) }
func (defaultHasher) FullHash(path string) (uint64, error)  { return hasher.HashFile(path) }

// LogFunc recibe mensajes de diagnóstico con formato estilo Printf.
type LogFunc func(format string, args ...any)

type Options struct {
	Roots         []string
	ExcludeDirs   []string // Nombres de carpeta que no se descienden
	IgnoreMissing bool     // Raíces inexistentes sin aviso
	IgnoreEmpty   bool     // Archivos de 0 bytes fuera de la agrupación
	Warnf         LogFunc  // Canal de avisos (nil = descartados)
	Debugf        LogFunc  // Diagnóstico fino (nil = descartado)
	Hasher        Hasher   // nil = hasher real
}

// Result es el producto de una pasada completa. Todas las tablas viven solo
// dentro de Run: no hay estado global, así que varias pasadas en el mismo
// proceso no se pisan.
type Result struct {
	Groups       []*entities.DuplicateGroup // Grupos finales, ya ordenados
	Unique       []string                   // Complemento (modo inverso), en orden de descubrimiento
	TotalScanned int64
	Duration     time.Duration
}

// slotState etiqueta el valor de una entrada en un bucket de tamaño. La
// primera ruta de cada tamaño se apunta sin registro: su huella solo se
// calcula si aparece una segunda ruta del mismo tamaño. En árboles con
// mayoría de tamaños únicos esto ahorra casi todos los hashes.
type slotState int

const (
	slotPendiente slotState = iota // solo conocemos la ruta
	slotRegistrado                 // info materializada (stat + huella rápida)
)

type slot struct {
	state slotState
	info  *entities.FileInfo // solo válido con slotRegistrado
}

type Runner struct {
	opts   Options
	h      Hasher
	warnf  LogFunc
	debugf LogFunc
}

func New(opts Options) *Runner {
	h := opts.Hasher
	if h == nil {
		h = defaultHasher{}
	}
	warnf := opts.Warnf
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	debugf := opts.Debugf
	if debugf == nil {
		debugf = func(string, ...any) {}
	}
	return &Runner{opts: opts, h: h, warnf: warnf, debugf: debugf}
}

// Run ejecuta la pasada completa: recorrido, agrupación por tamaño,
// huella rápida, huella completa y ordenación. Secuencial de principio a
// fin; el único error posible es la violación de invariante interna.
func (r *Runner) Run() (*Result, error) {
	start := time.Now()

	// --- FASE 1+2: RECORRIDO Y BUCKETS POR TAMAÑO ---
	bySize := make(map[int64]map[string]slot)
	seen := make(map[string]struct{})
	var order []string // candidatos en orden de descubrimiento
	var runErr error

	sc := scanner.New(scanner.Config{
		Roots:         r.opts.Roots,
		ExcludeDirs:   r.opts.ExcludeDirs,
		IgnoreMissing: r.opts.IgnoreMissing,
		Warnf:         scanner.WarnFunc(r.warnf),
	})

	sc.Walk(func(path string, size int64) {
		if runErr != nil {
			return
		}
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}

		// Los archivos vacíos excluidos siguen contando como descubiertos:
		// no entran en ningún grupo, así que acaban en el modo inverso.
		if r.opts.IgnoreEmpty && size == 0 {
			order = append(order, path)
			return
		}

		kept, err := r.addBySize(bySize, path, size)
		if err != nil {
			runErr = err
			return
		}
		if kept {
			order = append(order, path)
		}
	})
	if runErr != nil {
		return nil, runErr
	}

	// --- FASE 3: HUELLA RÁPIDA ---
	byQuick := r.groupByQuick(bySize)

	// --- FASE 4: HUELLA COMPLETA ---
	groups := r.groupByFull(byQuick)
	sortGroups(groups)

	// --- FASE 5: COMPLEMENTO ---
	agrupados := make(map[string]struct{})
	for _, g := range groups {
		for _, f := range g.Files {
			agrupados[f.Path] = struct{}{}
		}
	}
	var unique []string
	for _, path := range order {
		if _, ok := agrupados[path]; !ok {
			unique = append(unique, path)
		}
	}

	return &Result{
		Groups:       groups,
		Unique:       unique,
		TotalScanned: int64(len(order)),
		Duration:     time.Since(start),
	}, nil
}

// addBySize incorpora un candidato a su bucket de tamaño. La primera ruta de
// un tamaño queda pendiente; al llegar la segunda se materializan ambas. Si
// la pendiente desapareció mientras tanto, la actual hereda el hueco
// pendiente y el bucket debe quedar con exactamente una entrada.
// Devuelve false si el candidato desapareció antes del stat.
func (r *Runner) addBySize(bySize map[int64]map[string]slot, path string, size int64) (bool, error) {
	bucket, existe := bySize[size]
	if !existe {
		bySize[size] = map[string]slot{path: {state: slotPendiente}}
		return true, nil
	}

	for prev, s := range bucket {
		if s.state != slotPendiente {
			continue
		}
		info, err := r.materialize(prev)
		if err != nil {
			// La pendiente ya no existe: promoción de la ruta actual.
			delete(bucket, prev)
			bucket[path] = slot{state: slotPendiente}
			if len(bucket) != 1 {
				return false, fmt.Errorf("%w: tamaño %d con %d entradas tras la promoción",
					ErrBucketInconsistente, size, len(bucket))
			}
			return true, nil
		}
		bucket[prev] = slot{state: slotRegistrado, info: info}
		break // como mucho hay una pendiente por bucket
	}

	info, err := r.materialize(path)
	if err != nil {
		// Desapareció entre el listado y el stat: mutación concurrente.
		return false, nil
	}
	bucket[path] = slot{state: slotRegistrado, info: info}
	return true, nil
}

// materialize hace el stat definitivo (inode, dispositivo, mtime) y calcula
// la huella rápida. Cualquier fallo de stat se trata como desaparición.
func (r *Runner) materialize(path string) (*entities.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	fi := &entities.FileInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		fi.DeviceID = uint64(st.Dev)
		fi.Inode = uint64(st.Ino)
	}
	fi.QuickHash = r.quick(path)
	return fi, nil
}

// quick degrada cualquier error de lectura al digest centinela: un archivo
// ilegible solo puede agruparse con otros igual de ilegibles y jamás aborta
// el escaneo.
func (r *Runner) quick(path string) uint64 {
	h, err := r.h.QuickHash(path)
	if err != nil {
		r.debugf("huella rápida imposible para %s: %v", path, err)
		return hasher.SentinelDigest
	}
	return h
}

func (r *Runner) full(path string) uint64 {
	h, err := r.h.FullHash(path)
	if err != nil {
		r.debugf("huella completa imposible para %s: %v", path, err)
		return hasher.SentinelDigest
	}
	return h
}

// huellaKey es la clave de reagrupación: el tamaño forma parte de la clave
// para que dos ilegibles de tamaños distintos, ambos degradados al digest
// centinela, jamás acaben en el mismo grupo.
type huellaKey struct {
	size int64
	hash uint64
}

// groupByQuick reagrupa por (tamaño, huella rápida) los registros de todos
// los buckets de tamaño con dos o más miembros. Los grupos de un solo
// miembro eran falsos positivos del tamaño y se descartan aquí, barato.
func (r *Runner) groupByQuick(bySize map[int64]map[string]slot) map[huellaKey]map[string]*entities.FileInfo {
	byQuick := make(map[huellaKey]map[string]*entities.FileInfo)
	for _, bucket := range bySize {
		if len(bucket) < 2 {
			continue
		}
		for _, s := range bucket {
			switch s.state {
			case slotRegistrado:
				key := huellaKey{s.info.Size, s.info.QuickHash}
				grupo, ok := byQuick[key]
				if !ok {
					grupo = make(map[string]*entities.FileInfo)
					byQuick[key] = grupo
				}
				grupo[s.info.Path] = s.info
			case slotPendiente:
				// Un bucket con >=2 entradas nunca conserva pendientes: la
				// materialización ocurre al llegar la segunda ruta.
			}
		}
	}
	return byQuick
}

// groupByFull calcula la huella completa de los supervivientes y forma los
// grupos finales de duplicados, de nuevo con clave (tamaño, huella).
func (r *Runner) groupByFull(byQuick map[huellaKey]map[string]*entities.FileInfo) []*entities.DuplicateGroup {
	byFull := make(map[huellaKey][]*entities.FileInfo)
	for _, grupo := range byQuick {
		if len(grupo) < 2 {
			continue
		}
		for path, fi := range grupo {
			fi.FullHash = r.full(path)
			key := huellaKey{fi.Size, fi.FullHash}
			byFull[key] = append(byFull[key], fi)
		}
	}

	var groups []*entities.DuplicateGroup
	for key, files := range byFull {
		if len(files) < 2 {
			continue
		}
		// El tamaño del grupo se deriva de un miembro cualquiera: la clave
		// de agrupación garantiza que todos lo comparten, centinela incluido.
		groups = append(groups, &entities.DuplicateGroup{
			Hash:  key.hash,
			Size:  files[0].Size,
			Files: files,
		})
	}
	return groups
}
