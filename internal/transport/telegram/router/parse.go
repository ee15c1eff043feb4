package router

import (
	"math/rand"
	"strings"
	"sync/atomic"
	"time"
)

var reqSeq uint64

// newReqID builds a short correlation id: base36 timestamp, sequence, and
// two random characters to survive restarts within the same nanosecond tick.
func newReqID() string {
	seq := atomic.AddUint64(&reqSeq, 1)
	return base36(time.Now().UnixNano()) + "-" + base36(int64(seq)) + randSuffix(2)
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return string(b)
}

func base36(v int64) string {
	if v < 0 {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var buf [32]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = base36Alphabet[v%36]
		v /= 36
	}
	return string(buf[i:])
}

// tokenizeCommandLine splits command text into tokens. Single and double
// quotes group words; backslash escapes the next character.
//
//	/dispatch add "My Title" --nation=foo
func tokenizeCommandLine(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var (
		tokens  []string
		cur     strings.Builder
		quote   byte // 0 when outside quotes
		escaped bool
	)
	emit := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			emit()
		default:
			cur.WriteByte(c)
		}
	}
	emit()
	return tokens
}

// parseFlags separates positionals from flags.
//
// Accepted forms: --k=v, --k v, --flag, -k=v, -k v, and -abc as the bool
// cluster a, b, c.
func parseFlags(args []string) (pos []string, flags map[string]string, bools map[string]bool) {
	flags = map[string]string{}
	bools = map[string]bool{}

	// nextValue consumes args[i+1] when it looks like a value, not a flag.
	nextValue := func(i int) (string, bool) {
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			return args[i+1], true
		}
		return "", false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--") && len(arg) > 2:
			key := arg[2:]
			if eq := strings.IndexByte(key, '='); eq >= 0 {
				flags[key[:eq]] = key[eq+1:]
				continue
			}
			if v, ok := nextValue(i); ok {
				flags[key] = v
				i++
				continue
			}
			bools[key] = true

		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			key := arg[1:]
			if eq := strings.IndexByte(key, '='); eq >= 0 {
				flags[key[:eq]] = key[eq+1:]
				continue
			}
			if len(key) == 1 {
				if v, ok := nextValue(i); ok {
					flags[key] = v
					i++
					continue
				}
				bools[key] = true
				continue
			}
			for j := 0; j < len(key); j++ {
				bools[string(key[j])] = true
			}

		default:
			pos = append(pos, arg)
		}
	}
	return pos, flags, bools
}
