// Package chunker splits long text into pieces small enough to embed.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultTarget = 1000
	DefaultMax    = 1500
)

// Options bounds chunk sizes in runes.
type Options struct {
	// Target is the size small blocks are merged up to.
	Target int
	// Max is the hard limit; text at or under it is never split.
	Max int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{Target: DefaultTarget, Max: DefaultMax}
}

func (o Options) normalized() Options {
	if o.Max <= 0 {
		o.Max = DefaultMax
	}
	if o.Target <= 0 || o.Target > o.Max {
		o.Target = o.Max
	}
	return o
}

// Split breaks text on markdown headings and blank lines, merges neighbours
// up to Target, and hard-splits anything still over Max on line and then
// word boundaries. Text within Max comes back as a single chunk; blank text
// gives nil.
func Split(text string, opts Options) []string {
	opts = opts.normalized()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runes(text) <= opts.Max {
		return []string{text}
	}

	var out []string
	var acc string
	flush := func() {
		if acc == "" {
			return
		}
		if runes(acc) > opts.Max {
			out = append(out, hardSplit(acc, opts)...)
		} else {
			out = append(out, acc)
		}
		acc = ""
	}
	for _, b := range blocks(text) {
		if acc == "" {
			acc = b
			continue
		}
		if joined := acc + "\n\n" + b; runes(joined) <= opts.Target {
			acc = joined
			continue
		}
		flush()
		acc = b
	}
	flush()
	return out
}

// blocks splits on heading lines and runs of blank lines.
func blocks(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if t := strings.TrimSpace(strings.Join(cur, "\n")); t != "" {
			out = append(out, t)
		}
		cur = nil
	}
	blank := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			flush()
		case trimmed == "":
			if !blank {
				flush()
			}
			blank = true
			continue
		}
		blank = false
		cur = append(cur, line)
	}
	flush()
	return out
}

// hardSplit packs whole lines up to Target. A single line over Max is
// packed word by word instead.
func hardSplit(text string, opts Options) []string {
	var out []string
	var cur strings.Builder
	emit := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			out = append(out, t)
		}
		cur.Reset()
	}
	add := func(piece, sep string) {
		if cur.Len() > 0 && runes(cur.String())+runes(sep)+runes(piece) > opts.Target {
			emit()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(piece)
	}
	for _, line := range strings.Split(text, "\n") {
		if runes(line) <= opts.Max {
			add(line, "\n")
			continue
		}
		for _, word := range strings.Fields(line) {
			for runes(word) > opts.Max {
				emit()
				cut := byteOffset(word, opts.Max)
				out = append(out, word[:cut])
				word = word[cut:]
			}
			add(word, " ")
		}
	}
	emit()
	return out
}

func runes(s string) int { return utf8.RuneCountInString(s) }

// byteOffset returns the byte index after the first n runes of s.
func byteOffset(s string, n int) int {
	i := 0
	for n > 0 && i < len(s) {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n--
	}
	return i
}
