package match

import (
	"fmt"
	"strings"

	"github.com/dtflow/dtflow/pkg/dtflow"
)

// KeyFunc derives an entity's partition key. The second result is false
// when the entity carries no usable key, which excludes it from
// matching entirely.
type KeyFunc func(e *dtflow.Entity) (string, bool)

// ByAttrs builds partition keys from the named attribute values, joined
// in order. An absent or nil attribute leaves the entity keyless.
//
//	key := match.ByAttrs("wheel", "sector", "station")
func ByAttrs(names ...string) KeyFunc {
	return func(e *dtflow.Entity) (string, bool) {
		var b strings.Builder
		for i, name := range names {
			v, ok := e.Attr(name)
			if !ok || v == nil {
				return "", false
			}
			if i > 0 {
				b.WriteByte('|')
			}
			fmt.Fprintf(&b, "%v", v)
		}
		return b.String(), true
	}
}

// ByChamber keys entities by the named wheel, sector and station
// attributes with the sector passed through NormalizeSector, so the
// extra MB4 readout sectors land in their host chambers. Use it when
// correlating across collections that number MB4 sectors differently.
func ByChamber(wheel, sector, station string) KeyFunc {
	return func(e *dtflow.Entity) (string, bool) {
		wh, ok := e.Int(wheel)
		if !ok {
			return "", false
		}
		sc, ok := e.Int(sector)
		if !ok {
			return "", false
		}
		st, ok := e.Int(station)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%d|%d|%d", wh, NormalizeSector(sc), st), true
	}
}

// NormalizeSector maps the extra MB4 readout sectors onto their host
// chambers: 13 becomes 4 and 14 becomes 10. Every other sector passes
// through unchanged.
func NormalizeSector(sector int64) int64 {
	switch sector {
	case 13:
		return 4
	case 14:
		return 10
	}
	return sector
}
