package csvbootstrap

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// ReadHeader reads the first line of the CSV at path and splits it into
// column names, stripping quotes and surrounding whitespace. The bulk row data itself is never parsed in Go; it is
// streamed straight into LOAD DATA.
func ReadHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvbootstrap: opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("csvbootstrap: reading header of %s: %w", path, err)
		}
		return nil, fmt.Errorf("csvbootstrap: %s has no header line", path)
	}
	line := strings.TrimRight(scanner.Text(), "\r")
	fields := strings.Split(line, ",")
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = strings.Trim(strings.TrimSpace(f), `"`)
	}
	return cols, nil
}

// DetectLineEnding sniffs whether path uses \r\n or \n line endings: it
// returns "\r\n" if the file contains any \r\n sequence and "\n"
// otherwise. The caller passes the result on as the LINES TERMINATED BY
// value of the load.
func DetectLineEnding(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("csvbootstrap: reading %s: %w", path, err)
	}
	if bytes.Contains(data, []byte("\r\n")) {
		return "\r\n", nil
	}
	return "\n", nil
}
