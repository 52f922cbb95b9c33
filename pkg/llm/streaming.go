package llm

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Assembler accumulates one branch's fragments. It is not safe for
// concurrent use and is not shared between branches.
type Assembler struct {
	buf    strings.Builder
	chunks int
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Push appends a fragment.
func (a *Assembler) Push(fragment string) {
	a.buf.WriteString(fragment)
	a.chunks++
}

// Len is the number of fragments pushed since the last Complete.
func (a *Assembler) Len() int { return a.chunks }

// Complete returns the accumulated text and resets the buffer.
func (a *Assembler) Complete() string {
	out := a.buf.String()
	a.buf.Reset()
	a.chunks = 0
	return out
}

// Run drives provider's stream to the end, forwarding every fragment to
// onChunk (which may be nil) and pushing it into asm. It returns the
// concatenation of all fragments.
func Run(ctx context.Context, provider Provider, req *Request, asm *Assembler, onChunk func(string)) (string, error) {
	sr, err := provider.CreateStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer sr.Close()

	var aggregate strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return aggregate.String(), err
		}
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return aggregate.String(), err
		}
		if chunk == "" {
			continue
		}
		aggregate.WriteString(chunk)
		if asm != nil {
			asm.Push(chunk)
		}
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	return aggregate.String(), nil
}
