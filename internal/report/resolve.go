package report

import (
	"fmt"
	"log/slog"
	"os"
)

// Resolve obtains the evaluator's report once the process has exited.
//
// When outPath is set the report is read from that file, otherwise stdout
// is parsed. Any failure (missing file, I/O error, malformed JSON) yields
// an absent Value; the reason is only logged at debug level.
func Resolve(outPath string, stdout []byte) Value {
	v, err := load(outPath, stdout)
	if err != nil {
		slog.Debug("report absent", "source", source(outPath), "err", err)
		return Value{}
	}
	return v
}

func load(outPath string, stdout []byte) (Value, error) {
	data := stdout
	if outPath != "" {
		b, err := os.ReadFile(outPath)
		if err != nil {
			return Value{}, fmt.Errorf("reading report: %w", err)
		}
		data = b
	}
	v, err := Parse(data)
	if err != nil {
		return Value{}, fmt.Errorf("parsing report from %s: %w", source(outPath), err)
	}
	return v, nil
}

func source(outPath string) string {
	if outPath == "" {
		return "stdout"
	}
	return outPath
}
