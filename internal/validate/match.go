package validate

import (
	"bufio"
	"io"
	"log"
	"os"
	"strings"

	"servicemon/internal/event"
	"servicemon/internal/service"
)

// matchLineLength caps both the significant part of a scanned line and
// the accumulated per-pattern log shown in a content event.
const matchLineLength = 512

// checkMatch tails the file for lines appended since the last cycle and
// tests them against the service's content patterns.
//
// Only lines terminated with a newline are compared. An unterminated
// line is assumed to be a partial write; the scan stops and resumes at
// the same position next cycle, giving the writer time to finish. Lines
// longer than matchLineLength are consumed to their newline but only the
// leading matchLineLength bytes are significant.
func (e *Engine) checkMatch(s *service.Service) {
	inf := s.Inf.File

	file, err := os.Open(s.Path)
	if err != nil {
		log.Printf("'%s' cannot open file %s: %v", s.Name, s.Path, err)
		return
	}
	defer file.Close()

	scan := true
	if strings.HasPrefix(s.Path, "/proc") {
		// Pseudo-files cannot be tailed.
		inf.ReadPos = 0
	} else {
		// If the inode changed or the file shrank below the cursor,
		// start over from the beginning.
		if inf.Inode != inf.PrevInode || inf.ReadPos > inf.Size {
			inf.ReadPos = 0
		}
		if inf.ReadPos == inf.Size {
			scan = false
		}
	}

	// Per-cycle accumulators, one per pattern; freed when the cycle's
	// events have been posted.
	logs := make(map[*service.MatchRule]*strings.Builder)

	if scan {
		e.scanMatches(s, file, logs)
	}

	for _, ml := range s.Matches {
		if buf := logs[ml]; buf != nil && buf.Len() > 0 {
			e.post(s, event.Content, event.StateChanged, ml.Action, "content match:\n%s", buf.String())
		} else {
			e.post(s, event.Content, event.StateChangedNot, ml.Action, "content doesn't match")
		}
	}
}

func (e *Engine) scanMatches(s *service.Service, file *os.File, logs map[*service.MatchRule]*strings.Builder) {
	inf := s.Inf.File

	if _, err := file.Seek(inf.ReadPos, io.SeekStart); err != nil {
		log.Printf("'%s' cannot seek file %s: %v", s.Name, s.Path, err)
		return
	}
	reader := bufio.NewReader(file)

line:
	for {
		text, advance, ok := readMatchLine(reader)
		if !ok {
			return
		}
		inf.ReadPos += int64(advance)

		for _, ml := range s.MatchIgnores {
			if ml.Matches(text) != ml.Not {
				continue line
			}
		}

		for _, ml := range s.Matches {
			if ml.Matches(text) != ml.Not {
				buf := logs[ml]
				if buf == nil {
					buf = &strings.Builder{}
					logs[ml] = buf
				}
				if buf.Len() < matchLineLength {
					buf.WriteString(text)
					buf.WriteByte('\n')
					if buf.Len() >= matchLineLength {
						buf.WriteString("...\n")
					}
				}
			}
		}
	}
}

// readMatchLine reads one newline-terminated line, returning its text
// without the newline and the number of bytes consumed including it.
// ok is false at end of input or on an unterminated line, in which case
// no bytes count as consumed and the cursor must not advance.
func readMatchLine(r *bufio.Reader) (text string, advance int, ok bool) {
	buf := make([]byte, 0, matchLineLength)
	for len(buf) < matchLineLength {
		b, err := r.ReadByte()
		if err != nil {
			// EOF mid-line means an incomplete write, retry next cycle.
			return "", 0, false
		}
		buf = append(buf, b)
		if b == '\n' {
			return string(buf[:len(buf)-1]), len(buf), true
		}
	}

	// The read buffer is full: the rest of the line up to its newline is
	// consumed but not significant for matching.
	advance = len(buf)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", 0, false
		}
		advance++
		if b == '\n' {
			return string(buf), advance, true
		}
	}
}
