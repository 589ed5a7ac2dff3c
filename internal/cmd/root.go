package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyunomas/dupescan/internal/engine"
	"github.com/soyunomas/dupescan/internal/logger"
	"github.com/soyunomas/dupescan/internal/report"
)

var (
	flagIgnoreMissing   bool
	flagIgnoreEmpty     bool
	flagIgnoreDirs      []string
	flagIgnoreContained []string
	flagInverse         bool
	flagVerbose         bool
)

// NewRootCommand construye el comando principal de dupescan.
func NewRootCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dupescan [raíz...]",
		Short:   "Detecta grupos de archivos con contenido idéntico",
		Version: version,
		Long: `dupescan recorre uno o más árboles de directorios y agrupa los archivos
cuyo contenido es idéntico byte a byte, comparando por etapas (tamaño,
huella de los primeros 4KB, huella completa) para no hashear lo que el
tamaño ya demuestra único.

El informe sale por stdout; los avisos, por stderr.

Ejemplos:
  dupescan                              # Directorio actual
  dupescan /datos /backup               # Varias raíces
  dupescan --ignore-dir .git --ignore-dir node_modules /repo
  dupescan --inverse /datos             # Solo los archivos sin duplicado
  dupescan --ignore-contained /backup   # Silencia grupos enteros bajo /backup`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScan,
	}

	cmd.Flags().BoolVar(&flagIgnoreMissing, "ignore-missing", false,
		"No avisar cuando una raíz no existe")
	cmd.Flags().BoolVar(&flagIgnoreEmpty, "ignore-empty", false,
		"Excluir los archivos de 0 bytes de la agrupación")
	cmd.Flags().StringArrayVar(&flagIgnoreDirs, "ignore-dir", nil,
		"Nombre de carpeta que nunca se desciende (repetible)")
	cmd.Flags().StringArrayVar(&flagIgnoreContained, "ignore-contained", nil,
		"Suprimir grupos contenidos por completo bajo esta ruta (repetible)")
	cmd.Flags().BoolVar(&flagInverse, "inverse", false,
		"Listar el complemento: archivos sin ningún duplicado")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Diagnóstico detallado por stderr")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	level := logger.LevelWarn
	if flagVerbose {
		level = logger.LevelDebug
	}
	log := logger.NewConsoleLogger(cmd.ErrOrStderr(), level)

	runner := engine.New(engine.Options{
		Roots:         args,
		ExcludeDirs:   flagIgnoreDirs,
		IgnoreMissing: flagIgnoreMissing,
		IgnoreEmpty:   flagIgnoreEmpty,
		Warnf:         log.Warnf,
		Debugf:        log.Debugf,
	})

	res, err := runner.Run()
	if err != nil {
		return fmt.Errorf("escaneo abortado: %w", err)
	}
	log.Debugf("candidatos: %d, grupos: %d, duración: %s",
		res.TotalScanned, len(res.Groups), res.Duration)

	if flagInverse {
		return report.WriteInverse(cmd.OutOrStdout(), res.Unique)
	}
	return report.WriteGroups(cmd.OutOrStdout(), res.Groups, flagIgnoreContained)
}
