package hasher

import (
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// BlockSize optimiza la lectura del disco (32KB es un buen estándar)
const BlockSize = 32 * 1024

// QuickSize define cuánto leemos para la huella rápida (4KB)
const QuickSize = 4 * 1024

// SentinelDigest es el digest "todo ceros" al que degradan los archivos
// ilegibles: solo pueden agruparse entre sí, nunca abortan el escaneo.
const SentinelDigest uint64 = 0

// bufferPool solo para cargas pesadas (HashFile completo)
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, BlockSize)
		return &b
	},
}

// hashPool para reutilizar el estado del digest
var hashPool = sync.Pool{
	New: func() any {
		return xxhash.New()
	},
}

// HashFile calcula el hash del contenido completo. Aquí SI vale la pena
// usar Pools. El descriptor se cierra siempre, falle o no la lectura.
func HashFile(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	h := hashPool.Get().(*xxhash.Digest)
	h.Reset()
	defer hashPool.Put(h)

	bufPtr := bufferPool.Get().(*[]byte)
	buf := *bufPtr
	defer bufferPool.Put(bufPtr)

	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return 0, err
	}

	return h.Sum64(), nil
}

// HashFirstBlock calcula la huella rápida sobre como mucho los primeros
// QuickSize bytes. NO usa sync.Pool de buffers para evitar contención en
// lecturas pequeñas.
func HashFirstBlock(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	h := hashPool.Get().(*xxhash.Digest)
	h.Reset()
	defer hashPool.Put(h)

	// Alloc simple de 4KB. Es barato y evita locking del Pool global.
	// Usamos ReadFull para asegurar consistencia.
	buf := make([]byte, QuickSize)
	n, err := io.ReadFull(file, buf)

	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, err
	}

	// Hash de lo que se haya podido leer
	_, _ = h.Write(buf[:n])

	return h.Sum64(), nil
}
