package parser

import (
	"fmt"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestTagIntern(t *testing.T) {
	ti := newTagIntern(2)

	a := ti.Intern("Music")
	b := ti.Intern(string([]byte("Music")))
	assert.Equal(t, unsafe.StringData(a), unsafe.StringData(b), "same backing data")

	ti.Intern("ReceiveText")
	assert.Equal(t, 2, ti.Len())

	// Full pool returns new tags unchanged and does not grow.
	assert.Equal(t, "NavBeaconScan", ti.Intern("NavBeaconScan"))
	assert.Equal(t, 2, ti.Len())
}

func TestTagInternConcurrent(t *testing.T) {
	ti := newTagIntern(maxInternedTags)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ti.Intern(fmt.Sprintf("Tag%d", i%10))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, ti.Len())
}

func TestDecoderInternsUnknownTags(t *testing.T) {
	d := NewDecoder(nil)
	e1 := d.Decode(`{"timestamp":"2024-03-01T10:00:00Z","event":"SomethingNew"}`)
	e2 := d.Decode(`{"timestamp":"2024-03-01T10:01:00Z","event":"SomethingNew"}`)

	u1, ok := e1.Payload.(Unknown)
	assert.True(t, ok)
	u2, ok := e2.Payload.(Unknown)
	assert.True(t, ok)
	assert.Equal(t, "SomethingNew", u1.Name)
	assert.Equal(t, unsafe.StringData(u1.Name), unsafe.StringData(u2.Name))
}
