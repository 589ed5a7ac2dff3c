package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func touch(t *testing.T, path string, when time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, when, when))
}

// countingHasher cuenta invocaciones por ruta para comprobar que los
// tamaños únicos jamás se hashean.
type countingHasher struct {
	inner Hasher
	quick map[string]int
	full  map[string]int
}

func newCountingHasher() *countingHasher {
	return &countingHasher{
		inner: defaultHasher{},
		quick: make(map[string]int),
		full:  make(map[string]int),
	}
}

func (c *countingHasher) QuickHash(path string) (uint64, error) {
	c.quick[path]++
	return c.inner.QuickHash(path)
}

func (c *countingHasher) FullHash(path string) (uint64, error) {
	c.full[path]++
	return c.inner.FullHash(path)
}

func TestRunBasicScenario(t *testing.T) {
	dir := t.TempDir()
	t1 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	a := writeFile(t, dir, "a", "x")
	b := writeFile(t, dir, "b", "x")
	c := writeFile(t, dir, "c", "y")
	touch(t, a, t1)
	touch(t, b, t2)

	res, err := New(Options{Roots: []string{dir}}).Run()
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	require.Len(t, g.Files, 2)
	require.Equal(t, int64(1), g.Size)
	require.Equal(t, int64(1), g.RedundantBytes())

	// Dentro del grupo: fecha ascendente.
	require.Equal(t, a, g.Files[0].Path)
	require.Equal(t, b, g.Files[1].Path)

	// c tiene el mismo tamaño pero distinto contenido: solo sale en inverso.
	require.Equal(t, []string{c}, res.Unique)
	require.Equal(t, int64(3), res.TotalScanned)
}

func TestRunUniqueSizesNeverHashed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "uno", "a")
	writeFile(t, dir, "dos", "bb")
	tres := writeFile(t, dir, "tres", "ccc")

	h := newCountingHasher()
	res, err := New(Options{Roots: []string{dir}, Hasher: h}).Run()
	require.NoError(t, err)

	require.Empty(t, res.Groups)
	require.Len(t, res.Unique, 3)
	require.Empty(t, h.quick, "tamaño único = cero huellas rápidas")
	require.Empty(t, h.full, "tamaño único = cero huellas completas")
	require.Contains(t, res.Unique, tres)
}

func TestRunQuickHashPrunesBeforeFullHash(t *testing.T) {
	dir := t.TempDir()
	// Mismo tamaño, contenido distinto desde el primer byte: el tamaño los
	// junta, la huella rápida los separa, la completa nunca se calcula.
	writeFile(t, dir, "a", "aaaa")
	writeFile(t, dir, "b", "bbbb")

	h := newCountingHasher()
	res, err := New(Options{Roots: []string{dir}, Hasher: h}).Run()
	require.NoError(t, err)

	require.Empty(t, res.Groups)
	require.Len(t, h.quick, 2)
	require.Empty(t, h.full, "falsos positivos de tamaño mueren en la huella rápida")
	require.Len(t, res.Unique, 2)
}

func TestRunCompleteness(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "d1", "dup"),
		writeFile(t, dir, "d2", "dup"),
		writeFile(t, dir, "sub/d3", "dup"),
		writeFile(t, dir, "solo", "único"),
		writeFile(t, dir, "otro", "distinto!"),
	}

	res, err := New(Options{Roots: []string{dir}}).Run()
	require.NoError(t, err)

	// Unión de grupos e inverso = todos los candidatos, sin solapes.
	union := make(map[string]int)
	for _, g := range res.Groups {
		for _, f := range g.Files {
			union[f.Path]++
		}
	}
	for _, p := range res.Unique {
		union[p]++
	}
	require.Len(t, union, len(paths))
	for _, p := range paths {
		require.Equal(t, 1, union[p], "cada ruta aparece exactamente una vez: %s", p)
	}
}

func TestRunIgnoreEmpty(t *testing.T) {
	dir := t.TempDir()
	v1 := writeFile(t, dir, "vacio1", "")
	v2 := writeFile(t, dir, "vacio2", "")

	h := newCountingHasher()
	res, err := New(Options{Roots: []string{dir}, IgnoreEmpty: true, Hasher: h}).Run()
	require.NoError(t, err)

	require.Empty(t, res.Groups, "los vacíos no forman grupos con --ignore-empty")
	require.ElementsMatch(t, []string{v1, v2}, res.Unique,
		"pero siguen saliendo en el modo inverso")
	require.Empty(t, h.quick)
}

func TestRunEmptyFilesGroupWithoutIgnoreEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vacio1", "")
	writeFile(t, dir, "vacio2", "")

	res, err := New(Options{Roots: []string{dir}}).Run()
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	require.Equal(t, int64(0), res.Groups[0].Size)
	require.Equal(t, int64(0), res.Groups[0].RedundantBytes())
}

func TestRunHardlinksAppearAsSeparateMembers(t *testing.T) {
	dir := t.TempDir()
	h1 := writeFile(t, dir, "h1", "data")
	h2 := filepath.Join(dir, "h2")
	require.NoError(t, os.Link(h1, h2))
	writeFile(t, dir, "indep", "data")

	res, err := New(Options{Roots: []string{dir}}).Run()
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	require.Len(t, res.Groups[0].Files, 3, "cada ruta sale como línea propia")

	inodes := make(map[uint64]int)
	for _, f := range res.Groups[0].Files {
		inodes[f.Inode]++
	}
	require.Len(t, inodes, 2, "dos inodes físicos: el par hardlink y el independiente")
}

// errHasher fuerza el fallo de lectura sobre rutas concretas.
type errHasher struct {
	inner Hasher
	bad   string
}

func (e *errHasher) QuickHash(path string) (uint64, error) {
	if strings.Contains(path, e.bad) {
		return 0, os.ErrPermission
	}
	return e.inner.QuickHash(path)
}

func (e *errHasher) FullHash(path string) (uint64, error) {
	if strings.Contains(path, e.bad) {
		return 0, os.ErrPermission
	}
	return e.inner.FullHash(path)
}

func TestRunUnreadableFileDegradesToSentinel(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", "misma")
	b := writeFile(t, dir, "b", "misma")
	bad := writeFile(t, dir, "ilegible", "otra!")

	res, err := New(Options{
		Roots:  []string{dir},
		Hasher: &errHasher{inner: defaultHasher{}, bad: "ilegible"},
	}).Run()
	require.NoError(t, err, "un archivo ilegible jamás aborta el escaneo")

	require.Len(t, res.Groups, 1)
	require.ElementsMatch(t, []string{a, b},
		[]string{res.Groups[0].Files[0].Path, res.Groups[0].Files[1].Path},
		"el par legible se agrupa intacto")
	require.Contains(t, res.Unique, bad,
		"el centinela solo se agrupa consigo mismo y cae como singleton")
}

func TestRunUnreadableFilesOfDifferentSizesNeverMerge(t *testing.T) {
	dir := t.TempDir()
	// Cada ilegible comparte bucket de tamaño con un archivo legible, así
	// que ambos llegan a la fase de huellas y degradan al centinela.
	writeFile(t, dir, "buena4", "aaaa")
	mala4 := writeFile(t, dir, "mala4", "bbbb")
	writeFile(t, dir, "buena8", "aaaaaaaa")
	mala8 := writeFile(t, dir, "mala8", "bbbbbbbb")

	res, err := New(Options{
		Roots:  []string{dir},
		Hasher: &errHasher{inner: defaultHasher{}, bad: "mala"},
	}).Run()
	require.NoError(t, err)

	// Validez de grupo: todos los miembros comparten el tamaño del grupo.
	for _, g := range res.Groups {
		for _, f := range g.Files {
			require.Equal(t, g.Size, f.Size,
				"un grupo jamás mezcla tamaños: %s", f.Path)
		}
	}

	// El centinela no cruza tamaños: cada ilegible queda como singleton y
	// cae al inverso en lugar de fabricar un grupo mixto.
	require.Empty(t, res.Groups)
	require.Contains(t, res.Unique, mala4)
	require.Contains(t, res.Unique, mala8)
}

func TestRunTwoSentinelFilesGroupTogether(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mala1", "aaaa")
	writeFile(t, dir, "mala2", "bbbb")

	res, err := New(Options{
		Roots:  []string{dir},
		Hasher: &errHasher{inner: defaultHasher{}, bad: "mala"},
	}).Run()
	require.NoError(t, err)

	// Contenidos distintos, pero ambas degradan al mismo digest centinela.
	require.Len(t, res.Groups, 1)
	require.Len(t, res.Groups[0].Files, 2)
}

func TestRunDeterministicOrdering(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, tc := range []struct{ name, content string }{
		{"g1/a", "grupo-uno"},
		{"g1/b", "grupo-uno"},
		{"g2/a", "dos"},
		{"g2/b", "dos"},
		{"g2/c", "dos"},
	} {
		p := writeFile(t, dir, tc.name, tc.content)
		touch(t, p, base.Add(time.Duration(i)*time.Minute))
	}

	render := func() []string {
		res, err := New(Options{Roots: []string{dir}}).Run()
		require.NoError(t, err)
		var seq []string
		for _, g := range res.Groups {
			for _, f := range g.Files {
				seq = append(seq, f.Path)
			}
		}
		return seq
	}

	first := render()
	require.Equal(t, first, render(), "misma foto, mismo orden")

	// grupo-uno: (2-1)*9 = 9 bytes; dos: (3-1)*3 = 6 bytes.
	res, err := New(Options{Roots: []string{dir}}).Run()
	require.NoError(t, err)
	require.Equal(t, int64(9), res.Groups[0].RedundantBytes())
	require.Equal(t, int64(6), res.Groups[1].RedundantBytes())
}

func TestAddBySizePromotionAfterVanish(t *testing.T) {
	dir := t.TempDir()
	r := New(Options{})
	bySize := make(map[int64]map[string]slot)

	a := writeFile(t, dir, "a", "1234")
	kept, err := r.addBySize(bySize, a, 4)
	require.NoError(t, err)
	require.True(t, kept)
	require.Equal(t, slotPendiente, bySize[4][a].state,
		"la primera ruta de un tamaño queda sin registro")

	// a desaparece antes de que llegue la segunda ruta del mismo tamaño.
	require.NoError(t, os.Remove(a))

	b := writeFile(t, dir, "b", "5678")
	kept, err = r.addBySize(bySize, b, 4)
	require.NoError(t, err)
	require.True(t, kept)
	require.Len(t, bySize[4], 1, "tras la promoción el bucket tiene una sola entrada")
	require.Equal(t, slotPendiente, bySize[4][b].state,
		"la ruta actual hereda el hueco pendiente")

	c := writeFile(t, dir, "c", "9999")
	kept, err = r.addBySize(bySize, c, 4)
	require.NoError(t, err)
	require.True(t, kept)
	require.Equal(t, slotRegistrado, bySize[4][b].state)
	require.Equal(t, slotRegistrado, bySize[4][c].state)
	require.NotZero(t, bySize[4][b].info.Inode)
}

func TestAddBySizeVanishedCurrentIsSkipped(t *testing.T) {
	dir := t.TempDir()
	r := New(Options{})
	bySize := make(map[int64]map[string]slot)

	a := writeFile(t, dir, "a", "1234")
	_, err := r.addBySize(bySize, a, 4)
	require.NoError(t, err)

	// La segunda ruta desaparece entre el listado y el stat.
	fantasma := filepath.Join(dir, "fantasma")
	kept, err := r.addBySize(bySize, fantasma, 4)
	require.NoError(t, err, "una desaparición no es un error")
	require.False(t, kept)
	require.NotContains(t, bySize[4], fantasma)
}
