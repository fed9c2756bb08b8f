package imp

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressVerbose(t *testing.T) {
	var out bytes.Buffer
	p := newProgress(&out, true)
	p.Add("a")
	p.Add("b")
	p.Done()

	assert.Equal(t, "a\nb\n\nprocessed 2 keys\n", out.String())
	assert.Equal(t, int64(2), p.Count())
}

func TestProgressCounter(t *testing.T) {
	var out bytes.Buffer
	p := newProgress(&out, false)
	for i := 0; i < 2500; i++ {
		p.Add(fmt.Sprintf("k%d", i))
	}
	p.Done()

	s := out.String()
	assert.True(t, strings.HasPrefix(s, "\r1000\r2000\n"), s)
	assert.True(t, strings.HasSuffix(s, "processed 2500 keys\n"), s)
	assert.NotContains(t, s, "k1")
}

func TestProgressNoKeys(t *testing.T) {
	var out bytes.Buffer
	p := newProgress(&out, false)
	p.Done()
	assert.Equal(t, "\nprocessed 0 keys\n", out.String())
}
