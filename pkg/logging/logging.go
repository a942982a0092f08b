// Package logging builds the logrus logger shared by all spkg components.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var levelColors = map[logrus.Level]color.Attribute{
	logrus.TraceLevel: color.FgHiBlack,
	logrus.DebugLevel: color.FgCyan,
	logrus.InfoLevel:  color.FgGreen,
	logrus.WarnLevel:  color.FgYellow,
	logrus.ErrorLevel: color.FgRed,
	logrus.FatalLevel: color.FgMagenta,
	logrus.PanicLevel: color.FgMagenta,
}

var levelTags = map[logrus.Level]string{
	logrus.TraceLevel: "TRACE",
	logrus.DebugLevel: "DEBUG",
	logrus.InfoLevel:  "INFO",
	logrus.WarnLevel:  "WARN",
	logrus.ErrorLevel: "ERROR",
	logrus.FatalLevel: "FATAL",
	logrus.PanicLevel: "PANIC",
}

// Formatter prints one line per entry: level tag, message, sorted fields.
type Formatter struct {
	UseColors bool
}

func (f *Formatter) paint(level logrus.Level, s string) string {
	if !f.UseColors {
		return s
	}
	c := color.New(levelColors[level])
	c.EnableColor()
	return c.Sprint(s)
}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteString(f.paint(entry.Level, fmt.Sprintf("%-5s", levelTags[entry.Level])))
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		buf.WriteByte(' ')
		buf.WriteString(f.paint(entry.Level, k))
		buf.WriteByte('=')
		switch v := entry.Data[k].(type) {
		case error:
			fmt.Fprintf(buf, "%q", v.Error())
		case string:
			if needsQuote(v) {
				fmt.Fprintf(buf, "%q", v)
			} else {
				buf.WriteString(v)
			}
		default:
			fmt.Fprint(buf, v)
		}
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '"' || r == '=' {
			return true
		}
	}
	return false
}

// New returns a logger writing to out at the named level. Colors are used
// when out is a terminal.
func New(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&Formatter{UseColors: isTerminal(out)})
	return logger, nil
}

func isTerminal(w io.Writer) bool {
	fd, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(fd.Fd()) || isatty.IsCygwinTerminal(fd.Fd())
}
