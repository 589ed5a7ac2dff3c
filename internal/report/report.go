// Package report renderiza el resultado del escaneo en texto plano.
//
// Todo sale por el io.Writer que se le pase (stdout en la CLI); los avisos
// nunca pasan por aquí, así que la salida es apta para scripts.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/utils"
)

// sysID identifica contenido físico: dos rutas con el mismo par
// (dispositivo, inode) son hardlinks del mismo dato.
type sysID struct {
	dev, inode uint64
}

const timeLayout = "2006-01-02 15:04:05"

// WriteGroups imprime los grupos de duplicados ya ordenados y el total
// recuperable. Un grupo cuyos miembros caen todos bajo alguna ruta de
// ignoreContained se suprime entero.
func WriteGroups(w io.Writer, groups []*entities.DuplicateGroup, ignoreContained []string) error {
	var total int64
	printed := 0

	for _, g := range groups {
		if suppressed(g, ignoreContained) {
			continue
		}
		printed++

		if _, err := fmt.Fprintf(w, "hash %016x  archivos: %d  tamaño: %s (%d bytes)\n",
			g.Hash, len(g.Files), utils.ByteCountDecimal(g.Size), g.Size); err != nil {
			return err
		}
		if parent := commonParent(g); parent != "" {
			if _, err := fmt.Fprintf(w, "  padre común: %s\n", SanitizePath(parent)); err != nil {
				return err
			}
		}
		for _, f := range g.Files {
			if _, err := fmt.Fprintf(w, "  %s  inode %d  %s\n",
				f.ModTime.Format(timeLayout), f.Inode, SanitizePath(f.Path)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}

		total += redundantByInode(g)
	}

	_, err := fmt.Fprintf(w, "Total recuperable: %s (%d bytes en %d grupos)\n",
		utils.ByteCountDecimal(total), total, printed)
	return err
}

// WriteInverse imprime el complemento: cada candidato que no pertenece a
// ningún grupo final, uno por línea, en orden de descubrimiento.
func WriteInverse(w io.Writer, paths []string) error {
	for _, p := range paths {
		if _, err := fmt.Fprintln(w, SanitizePath(p)); err != nil {
			return err
		}
	}
	return nil
}

// redundantByInode calcula los bytes redundantes del grupo contando el
// contenido una vez por inode distinto: dos hardlinks al mismo dato no
// ocupan nada extra y no deben inflar el total.
func redundantByInode(g *entities.DuplicateGroup) int64 {
	inodes := make(map[sysID]struct{}, len(g.Files))
	for _, f := range g.Files {
		inodes[sysID{f.DeviceID, f.Inode}] = struct{}{}
	}
	if len(inodes) < 2 {
		return 0
	}
	return int64(len(inodes)-1) * g.Size
}

// suppressed decide si el grupo entero cae bajo alguna ruta ignorada: se
// calcula el ancestro común textual de los miembros y se comprueba si la
// ruta ignorada lo contiene (ambos en absoluto).
func suppressed(g *entities.DuplicateGroup, ignoreContained []string) bool {
	if len(ignoreContained) == 0 {
		return false
	}
	ancestor := commonAncestor(memberPaths(g))
	if ancestor == "" {
		return false
	}
	absAncestor, err := filepath.Abs(ancestor)
	if err != nil {
		return false
	}
	for _, dir := range ignoreContained {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if contains(absDir, absAncestor) {
			return true
		}
	}
	return false
}

// commonParent devuelve el ancestro común de los miembros solo si además es
// un directorio real en disco; si no, cadena vacía.
func commonParent(g *entities.DuplicateGroup) string {
	ancestor := commonAncestor(memberPaths(g))
	if ancestor == "" {
		return ""
	}
	if info, err := os.Stat(ancestor); err == nil && info.IsDir() {
		return ancestor
	}
	return ""
}

func memberPaths(g *entities.DuplicateGroup) []string {
	paths := make([]string, len(g.Files))
	for i, f := range g.Files {
		paths[i] = f.Path
	}
	return paths
}

// commonAncestor calcula el prefijo-directorio textual compartido por todas
// las rutas, subiendo desde el directorio de la primera. Cadena vacía si no
// hay ancestro común (por ejemplo, mezcla de rutas relativas y absolutas).
func commonAncestor(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	ancestor := filepath.Dir(paths[0])
	for {
		ok := true
		for _, p := range paths {
			if !contains(ancestor, p) {
				ok = false
				break
			}
		}
		if ok {
			return ancestor
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			return ""
		}
		ancestor = parent
	}
}

// contains informa de si dir contiene a path en sentido textual estricto
// (igualdad incluida). "." contiene cualquier ruta relativa y la raíz
// cualquier absoluta.
func contains(dir, path string) bool {
	if dir == path {
		return true
	}
	if dir == "." {
		return !filepath.IsAbs(path)
	}
	if dir == string(filepath.Separator) {
		return filepath.IsAbs(path)
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// SanitizePath sustituye los bytes que no forman UTF-8 válido por escapes
// \xNN. El informe nunca falla por una ruta con codificación rota.
func SanitizePath(p string) string {
	if utf8.ValidString(p) {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); {
		r, size := utf8.DecodeRuneInString(p[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, "\\x%02x", p[i])
			i++
			continue
		}
		b.WriteString(p[i : i+size])
		i += size
	}
	return b.String()
}
