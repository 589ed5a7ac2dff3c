// Package logger implementa el canal de diagnóstico de dupescan.
//
// Los avisos van siempre por aquí (normalmente stderr) para que la salida
// del informe en stdout siga siendo parseable desde scripts.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Level controla qué mensajes se emiten.
type Level int

const (
	LevelDebug Level = iota
	LevelWarn
	LevelError
	LevelSilent
)

// ConsoleLogger escribe mensajes con marca de tiempo y nivel. Es seguro
// para uso concurrente y colorea la etiqueta solo cuando escribe en un
// terminal real.
type ConsoleLogger struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
	color bool
}

// NewConsoleLogger crea un logger sobre w filtrando por level.
// Con w == nil los mensajes se descartan.
func NewConsoleLogger(w io.Writer, level Level) *ConsoleLogger {
	return &ConsoleLogger{
		w:     w,
		level: level,
		color: isTerminal(w),
	}
}

// isTerminal detecta si w es un TTY que admite color.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var (
	debugColor = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
)

// Debugf emite un mensaje de depuración.
func (l *ConsoleLogger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, debugColor, "DEBUG", format, args...)
}

// Warnf emite un aviso.
func (l *ConsoleLogger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, warnColor, "WARN", format, args...)
}

// Errorf emite un error no recuperable de cara al usuario.
func (l *ConsoleLogger) Errorf(format string, args ...any) {
	l.logf(LevelError, errorColor, "ERROR", format, args...)
}

// logf formatea "[HH:MM:SS] [NIVEL] mensaje" bajo el mutex.
func (l *ConsoleLogger) logf(lv Level, c *color.Color, tag, format string, args ...any) {
	if l.w == nil || lv < l.level {
		return
	}

	label := "[" + tag + "]"
	if l.color {
		label = c.Sprint(label)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[%s] %s %s\n",
		time.Now().Format("15:04:05"), label, fmt.Sprintf(format, args...))
}
