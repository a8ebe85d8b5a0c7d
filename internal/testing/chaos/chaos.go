// Package chaos corrupts valid inputs to check that scanners, parsers and
// loaders handle malformed data without panicking.
//
// Besides raw byte damage, a Corruptor applies source-level damage that SQL
// and host-language scanners care about: unbalanced quotes and parentheses,
// dropped keywords and cut-off comments.
package chaos

import (
	"bytes"
	"math/rand/v2"
	"unicode/utf8"
)

// Mutation is a kind of corruption applied to input.
type Mutation int

const (
	ByteFlip Mutation = iota
	ByteDelete
	ByteInsert
	Utf8Corrupt
	Truncation
	QuoteInject
	ParenDrop
	KeywordDrop
	CommentOpen
	mutationCount
)

var (
	quotes   = []byte{'\'', '"', '`'}
	keywords = [][]byte{
		[]byte("SELECT"), []byte("FROM"), []byte("WHERE"), []byte("JOIN"),
		[]byte("ON"), []byte("INTO"), []byte("VALUES"), []byte("SET"),
	}
	comments = [][]byte{[]byte("/*"), []byte("--"), []byte("#"), []byte(`"""`)}
)

// Corruptor applies random mutations. It is deterministic for a seed and not
// safe for concurrent use.
type Corruptor struct {
	rng *rand.Rand
}

// NewCorruptor creates a Corruptor with the given seed.
func NewCorruptor(seed uint64) *Corruptor {
	return &Corruptor{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Corrupt returns a copy of input with one random mutation applied.
func (c *Corruptor) Corrupt(input []byte) []byte {
	return c.Apply(Mutation(c.rng.IntN(int(mutationCount))), input)
}

// Apply returns a copy of input with m applied.
func (c *Corruptor) Apply(m Mutation, input []byte) []byte {
	out := bytes.Clone(input)
	if len(out) == 0 {
		return c.randomBytes()
	}
	switch m {
	case ByteFlip:
		for range c.rng.IntN(3) + 1 {
			out[c.rng.IntN(len(out))] ^= byte(1 << c.rng.IntN(8))
		}
	case ByteDelete:
		i := c.rng.IntN(len(out))
		out = append(out[:i], out[i+1:]...)
	case ByteInsert:
		out = c.insertAt(out, []byte{byte(c.rng.IntN(256))})
	case Utf8Corrupt:
		out = c.utf8Corrupt(out)
	case Truncation:
		if len(out) > 1 {
			out = out[:c.rng.IntN(len(out)-1)+1]
		}
	case QuoteInject:
		out = c.insertAt(out, []byte{quotes[c.rng.IntN(len(quotes))]})
	case ParenDrop:
		out = c.dropOne(out, func(b byte) bool { return b == '(' || b == ')' })
	case KeywordDrop:
		kw := keywords[c.rng.IntN(len(keywords))]
		i := bytes.Index(out, kw)
		if i < 0 {
			i = bytes.Index(out, bytes.ToLower(kw))
		}
		if i >= 0 {
			out = append(out[:i], out[i+len(kw):]...)
		}
	case CommentOpen:
		out = c.insertAt(out, comments[c.rng.IntN(len(comments))])
	}
	return out
}

// CorruptN applies n random mutations in sequence.
func (c *Corruptor) CorruptN(input []byte, n int) []byte {
	out := bytes.Clone(input)
	for range n {
		out = c.Corrupt(out)
	}
	return out
}

// GenerateCorpus returns count corrupted variants of valid, each damaged by
// one to five mutations.
func (c *Corruptor) GenerateCorpus(valid []byte, count int) [][]byte {
	corpus := make([][]byte, count)
	for i := range corpus {
		corpus[i] = c.CorruptN(valid, c.rng.IntN(5)+1)
	}
	return corpus
}

func (c *Corruptor) insertAt(input, insert []byte) []byte {
	i := c.rng.IntN(len(input) + 1)
	out := make([]byte, 0, len(input)+len(insert))
	out = append(out, input[:i]...)
	out = append(out, insert...)
	return append(out, input[i:]...)
}

func (c *Corruptor) dropOne(input []byte, match func(byte) bool) []byte {
	var idx []int
	for i, b := range input {
		if match(b) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return input
	}
	i := idx[c.rng.IntN(len(idx))]
	return append(input[:i], input[i+1:]...)
}

// utf8Corrupt breaks a multi-byte sequence when there is one, else writes a
// dangling lead byte.
func (c *Corruptor) utf8Corrupt(input []byte) []byte {
	for i := 0; i < len(input); {
		r, size := utf8.DecodeRune(input[i:])
		if size > 1 && r != utf8.RuneError {
			input[i+size-1] = byte(c.rng.IntN(0x40))
			return input
		}
		i += size
	}
	input[c.rng.IntN(len(input))] = 0xC0 | byte(c.rng.IntN(0x20))
	return input
}

func (c *Corruptor) randomBytes() []byte {
	out := make([]byte, c.rng.IntN(10)+1)
	for i := range out {
		out[i] = byte(c.rng.IntN(256))
	}
	return out
}
