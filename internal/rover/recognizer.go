package rover

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"
)

// Recognizer is the upstream source of utterances. The reference
// implementation reads transcribed lines, one utterance per line; a real
// speech front end satisfies the same interface.
type Recognizer interface {
	// Recognize blocks until the next utterance, the context is done, or
	// an error. io.EOF ends the recognize loop without failing the agent.
	Recognize(ctx context.Context) (string, error)
}

type scanResult struct {
	line string
	err  error
}

// lineRecognizer reads utterances line by line from a reader. The read
// itself runs on a detached goroutine so that Recognize stays cancelable
// even while the reader blocks; the goroutine stays pinned on the blocking
// read until the reader is closed or the process exits.
type lineRecognizer struct {
	r       io.Reader
	once    sync.Once
	results chan scanResult
}

// NewLineRecognizer wraps a reader as a Recognizer.
func NewLineRecognizer(r io.Reader) Recognizer {
	return &lineRecognizer{r: r, results: make(chan scanResult)}
}

// NewStdinRecognizer reads utterances from standard input.
func NewStdinRecognizer() Recognizer {
	return NewLineRecognizer(os.Stdin)
}

func (l *lineRecognizer) Recognize(ctx context.Context) (string, error) {
	l.once.Do(func() { go l.scan() })

	select {
	case res, ok := <-l.results:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// scan pumps non-empty lines into the result channel, then delivers the
// terminal error (io.EOF on a clean end) and closes.
func (l *lineRecognizer) scan() {
	defer close(l.results)

	scanner := bufio.NewScanner(l.r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		l.results <- scanResult{line: line}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	l.results <- scanResult{err: err}
}
