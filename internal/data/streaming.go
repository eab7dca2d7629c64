package data

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// LineStreamer walks raw text one line at a time. Lines keep their
// terminator, so a consumer that writes them back preserves the input layout
// byte for byte.
type LineStreamer struct {
	reader *bufio.Reader
	line   int
}

func NewLineStreamer(r io.Reader) *LineStreamer {
	return &LineStreamer{reader: bufio.NewReader(r)}
}

// Next returns the next line including its terminator, or io.EOF once the
// input is exhausted. A final line without terminator is still returned.
func (ls *LineStreamer) Next() (string, error) {
	line, err := ls.reader.ReadString('\n')
	if err == io.EOF {
		if line == "" {
			return "", io.EOF
		}
		ls.line++
		return line, nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading line %d: %w", ls.line+1, err)
	}
	ls.line++
	return line, nil
}

// Lines is the number of lines returned so far.
func (ls *LineStreamer) Lines() int {
	return ls.line
}

// StreamFile applies fn to every line of src and writes the results to dst
// atomically.
func StreamFile(src, dst string, fn func(line string) string) (int, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer in.Close()

	lines := 0
	err = WriteFileAtomic(dst, func(w io.Writer) error {
		n, err := StreamLines(in, w, fn)
		lines = n
		return err
	})
	return lines, err
}

func StreamLines(r io.Reader, w io.Writer, fn func(line string) string) (int, error) {
	ls := NewLineStreamer(r)
	bw := bufio.NewWriter(w)
	for {
		line, err := ls.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ls.Lines(), err
		}
		if _, err := bw.WriteString(fn(line)); err != nil {
			return ls.Lines(), err
		}
	}
	return ls.Lines(), bw.Flush()
}
