package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/oklog/ulid/v2"
)

// cborEncMode uses canonical mode so equal programs encode identically.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// image is the serialized form of a Program.
type image struct {
	ID        []byte   `cbor:"1,keyasint"`
	Version   uint16   `cbor:"2,keyasint"`
	Filename  string   `cbor:"3,keyasint"`
	Dirname   string   `cbor:"4,keyasint"`
	Constants []string `cbor:"5,keyasint"`
	Code      []byte   `cbor:"6,keyasint"`
	SourceSum []byte   `cbor:"7,keyasint,omitempty"`
}

// Marshal serializes a program to CBOR bytes. sourceSum is an optional
// digest of the source text, used by caches to detect staleness.
func Marshal(p *Program, sourceSum []byte) ([]byte, error) {
	if n := p.Pending(); n > 0 {
		return nil, fmt.Errorf("bytecode: marshal incomplete program (%d unpatched slots)", n)
	}
	id := p.ID
	return cborEncMode.Marshal(&image{
		ID:        id[:],
		Version:   p.Version,
		Filename:  p.Filename,
		Dirname:   p.Dirname,
		Constants: p.Constants,
		Code:      p.Code,
		SourceSum: sourceSum,
	})
}

// Unmarshal deserializes a program from CBOR bytes, returning the source
// digest stored alongside it.
func Unmarshal(data []byte) (*Program, []byte, error) {
	var img image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if img.Version != FormatVersion {
		return nil, nil, fmt.Errorf("bytecode: unsupported program version %d (want %d)", img.Version, FormatVersion)
	}
	var id ulid.ULID
	if len(img.ID) != len(id) {
		return nil, nil, fmt.Errorf("bytecode: bad program id length %d", len(img.ID))
	}
	copy(id[:], img.ID)
	p := &Program{
		ID:        id,
		Version:   img.Version,
		Filename:  img.Filename,
		Dirname:   img.Dirname,
		Constants: img.Constants,
		Code:      img.Code,
		pending:   make(map[Slot]struct{}),
	}
	if p.Constants == nil {
		p.Constants = []string{}
	}
	p.rebuildConstantMap()
	return p, img.SourceSum, nil
}
